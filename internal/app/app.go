package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"notifycenter/internal/alarmtimer"
	"notifycenter/internal/api"
	"notifycenter/internal/center"
	"notifycenter/internal/channels/email"
	"notifycenter/internal/channels/telegram"
	"notifycenter/internal/config"
	"notifycenter/internal/eventbus"
	"notifycenter/internal/metrics"
	rtsup "notifycenter/internal/runtime/supervisor"
	"notifycenter/internal/storage"
	logx "notifycenter/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	center  *center.Center
	timer   *alarmtimer.Timer
	pusher  *telegram.Pusher
	mailer  *email.Sender
	api     *api.Service
	metrics *metrics.Recorder

	mu         sync.Mutex
	validation config.Validation
}

// NewApp loads the config and wires every component. Nothing runs until Start.
func NewApp(cfgPath, version string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	settings, err := mapSettings(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfgm:  cfgm,
		log:   log,
		logs:  logSvc,
		bus:   eventbus.New(),
		store: store,
	}

	// The timer and the Telegram confirm handler call back into the center,
	// which needs both at construction.
	a.timer = alarmtimer.New(func(ctx context.Context) { a.center.AlarmTick(ctx) }, log)
	a.mailer = email.New(mapMailers(cfg), log)
	if cfg.Push.Enabled && strings.TrimSpace(cfg.Push.Telegram.Token) != "" {
		tcfg, err := mapTelegramConfig(cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		p, err := telegram.New(tcfg, func(ctx context.Context) { a.center.ConfirmAlarmNotification(ctx) }, log)
		if err != nil {
			log.Error("telegram unavailable; push disabled until restart", logx.Err(err))
		} else {
			a.pusher = p
			a.pusher.SetAllowedChats(pushRefs(cfg))
		}
	}

	a.center = center.New(center.Options{
		Settings:  settings,
		Directory: mapDirectory(cfg),
		Senders:   a.senders(cfg),
		Store:     store,
		Timer:     a.timer,
		Bus:       a.bus,
		Log:       log,
	})
	a.metrics = metrics.New(func() int { return a.center.Alarm().Attempt })
	a.api = api.New(mapAPIConfig(cfg), api.Deps{
		Center:  a.center,
		Status:  a.Validation,
		Metrics: a.metrics,
		Version: version,
	}, log.With(logx.String("comp", "api")))

	a.setValidation(config.Validate(cfg))
	return a, nil
}

func mapAPIConfig(cfg *config.Config) api.Config {
	return api.Config{
		Enabled:        cfg.API.Enabled,
		Addr:           cfg.API.Addr,
		Token:          cfg.API.Token,
		Metrics:        cfg.Metrics.Enabled,
		ProcessMetrics: cfg.Metrics.ProcessMetrics,
	}
}

func (a *App) senders(cfg *config.Config) center.Senders {
	s := center.Senders{
		Email: a.mailer,
		SMS:   mapSMSProviders(cfg, a.log),
	}
	if a.pusher != nil {
		s.Push = a.pusher
	}
	return s
}

func (a *App) Center() *center.Center { return a.center }

// Validation returns the status computed from the last applied config.
func (a *App) Validation() config.Validation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.validation
}

func (a *App) setValidation(v config.Validation) {
	a.mu.Lock()
	a.validation = v
	a.mu.Unlock()
	fields := []logx.Field{logx.Int("status", int(v.Status)), logx.String("label", v.Label)}
	if len(v.Issues) > 0 {
		a.log.Warn("configuration has issues", append(fields, logx.String("issues", strings.Join(v.Issues, "; ")))...)
		return
	}
	a.log.Info("configuration status", fields...)
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	runCtx := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapSettings(cfg); err != nil {
			return err
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		_, err := mapTelegramConfig(cfg)
		return err
	})

	a.timer.Start(runCtx)
	if err := a.center.Resume(runCtx); err != nil {
		a.log.Warn("resume alarm state failed", logx.Err(err))
	}

	if a.pusher != nil {
		if err := a.pusher.Start(runCtx); err != nil {
			return err
		}
	}

	events, unsub := a.bus.Subscribe(256)
	a.sup.Go0("metrics.record", func(c context.Context) {
		defer unsub()
		a.metrics.Run(c, events)
	})

	debugEvents, unsubDebug := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsubDebug()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-debugEvents:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.api.Start(runCtx)

	a.sup.Go0("systemd.watchdog", func(c context.Context) { watchdogLoop(c, a.log) })
	sdNotify(a.log, daemon.SdNotifyReady)

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a reloaded config into every running component.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	settings, err := mapSettings(next)
	if err != nil {
		a.log.Warn("invalid config; keeping previous", logx.Err(err))
		return
	}

	a.logs.Apply(mapLogConfig(next))
	a.mailer.Update(mapMailers(next))
	if a.pusher != nil {
		a.pusher.SetAllowedChats(pushRefs(next))
	}
	a.center.SetSenders(a.senders(next))
	a.center.Apply(settings, mapDirectory(next))
	a.api.Reconfigure(ctx, mapAPIConfig(next))
	a.setValidation(config.Validate(next))

	if prev != nil {
		if !equalStorage(prev.Storage, next.Storage) {
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
		if strings.TrimSpace(prev.Push.Telegram.Token) != strings.TrimSpace(next.Push.Telegram.Token) {
			a.log.Warn("telegram token changed; restart required for changes to take effect")
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func equalStorage(a, b *config.StorageConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// step bounds one shutdown step so a stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			max = min(max, time.Until(dl))
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("api", 3*time.Second, func(c context.Context) error { a.api.Stop(c); return nil })
	step("alarmtimer", time.Second, a.timer.Stop)
	step("telegram", 3*time.Second, func(c context.Context) error {
		if a.pusher != nil {
			return a.pusher.Stop(c)
		}
		return nil
	})
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
