// Package api exposes the notification center over HTTP so home-automation
// hosts and scripts can trigger notifications and drive the alarm.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"notifycenter/internal/center"
	"notifycenter/internal/config"
	"notifycenter/internal/metrics"
	rtsup "notifycenter/internal/runtime/supervisor"
	"notifycenter/internal/storage"
	logx "notifycenter/pkg/logx"

	"github.com/gofiber/fiber/v2"
)

const DefaultAddr = "127.0.0.1:8089"

// Center is the subset of *center.Center served by the API.
type Center interface {
	SendNotification(ctx context.Context, n center.Notification) center.Report
	RepeatAlarmNotification(ctx context.Context)
	ConfirmAlarmNotification(ctx context.Context)
	Alarm() center.AlarmStatus
	IsUnderMaintenance() bool
	Deliveries(ctx context.Context, limit int) ([]storage.DeliveryRecord, error)
}

// Config controls the HTTP listener.
//
// A non-loopback Addr requires a Token.
type Config struct {
	Enabled        bool
	Addr           string
	Token          string
	Metrics        bool
	ProcessMetrics bool
}

type Deps struct {
	Center  Center
	Status  func() config.Validation
	Metrics *metrics.Recorder
	Version string
}

type Service struct {
	mu   sync.Mutex
	log  logx.Logger
	cfg  Config
	deps Deps

	app      *fiber.App
	sup      *rtsup.Supervisor
	stopDone chan struct{}
}

func New(cfg Config, deps Deps, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, deps: deps, log: log}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Reconfigure applies cfg, restarting the listener on any change.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) {
	s.mu.Lock()
	prev := s.cfg
	running := s.sup != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case !cfg.Enabled:
		if running {
			s.Stop(ctx)
		}
	case !running:
		s.Start(ctx)
	case prev != cfg:
		s.Stop(ctx)
		s.Start(ctx)
	}
}

// Start is idempotent; the listener is restarted with backoff if it dies.
func (s *Service) Start(ctx context.Context) {
	for {
		s.mu.Lock()
		if done := s.stopDone; done != nil {
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return
			}
		}
		if s.sup != nil || !s.cfg.Enabled {
			s.mu.Unlock()
			return
		}
		s.sup = rtsup.NewSupervisor(ctx,
			rtsup.WithLogger(s.log),
			rtsup.WithCancelOnError(false),
		)
		sup := s.sup
		s.mu.Unlock()

		sup.GoRestart("http.serve", s.serveOnce, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
		return
	}
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.sup == nil {
		s.mu.Unlock()
		return
	}
	if done := s.stopDone; done != nil {
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	app, sup := s.app, s.sup
	s.mu.Unlock()

	go func() {
		defer close(done)
		if app != nil {
			_ = app.ShutdownWithContext(ctx)
		}
		sup.Cancel()
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.app, s.sup, s.stopDone = nil, nil, nil
		s.mu.Unlock()
		s.log.Info("api stopped")
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sup.Cancel()
	}
}

func (s *Service) serveOnce(ctx context.Context) error {
	s.mu.Lock()
	cur := s.cfg
	s.mu.Unlock()

	addr := strings.TrimSpace(cur.Addr)
	if addr == "" {
		addr = DefaultAddr
	}
	if cur.Token == "" && !isLoopbackAddr(addr) {
		s.log.Error("api refused to start: non-loopback addr requires token", logx.String("addr", addr))
		return errors.New("api refused to start: insecure bind")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		return fmt.Errorf("api listen %s: %w", addr, err)
	}

	app := s.Handler(cur)
	s.mu.Lock()
	s.app = app
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(2 * time.Second)
	}()

	s.log.Info("api started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", cur.Token != ""))
	err = app.Listener(ln)

	s.mu.Lock()
	if s.app == app {
		s.app = nil
	}
	stopping := s.stopDone != nil
	s.mu.Unlock()

	if stopping || ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil {
		return errors.New("api server exited unexpectedly")
	}
	return err
}

// Handler builds the fiber app for cfg. Tests drive it through app.Test.
func (s *Service) Handler(cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "notifycenter",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          s.errorHandler,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	auth := bearerAuth(cfg.Token)
	if cfg.Metrics && s.deps.Metrics != nil {
		process := cfg.ProcessMetrics
		app.Get("/metrics", auth, func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
			s.deps.Metrics.WritePrometheus(c, process)
			return nil
		})
	}

	v1 := app.Group("/api/v1", auth)
	v1.Post("/notifications", s.handleSendNotification)
	v1.Get("/alarm", s.handleGetAlarm)
	v1.Post("/alarm/repeat", s.handleRepeatAlarm)
	v1.Post("/alarm/confirm", s.handleConfirmAlarm)
	v1.Get("/status", s.handleStatus)
	v1.Get("/deliveries", s.handleListDeliveries)
	return app
}

func (s *Service) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error("api request failed", logx.String("path", c.Path()), logx.Err(err))
	}
	return SendError(c, code, err.Error())
}

func bearerAuth(token string) fiber.Handler {
	tok := strings.TrimSpace(token)
	return func(c *fiber.Ctx) error {
		if tok == "" {
			return c.Next()
		}
		got, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || strings.TrimSpace(got) != tok {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return SendError(c, fiber.StatusUnauthorized, "unauthorized")
		}
		return c.Next()
	}
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
