// Package telegram delivers push notifications through a Telegram bot and
// turns the "Confirm alarm" button and the /confirm command into alarm
// confirmations.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"notifycenter/internal/center"
	rtsup "notifycenter/internal/runtime/supervisor"
	logx "notifycenter/pkg/logx"

	tele "gopkg.in/telebot.v4"
)

const (
	// CallbackConfirm is the callback payload of the confirm button.
	CallbackConfirm = "alarm:confirm"
	// SoundSilent delivers the message without a notification sound.
	SoundSilent = "silent"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Pusher implements center.Sender for Telegram chats.
type Pusher struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	onConfirm func(ctx context.Context)
	allowed   atomic.Value // map[int64]bool

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor
}

// New creates a Pusher. onConfirm runs when an allowed chat confirms an alarm.
func New(cfg Config, onConfirm func(ctx context.Context), log logx.Logger) (*Pusher, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Pusher{cfg: cfg, log: log.With(logx.String("comp", "telegram")), bot: b, onConfirm: onConfirm}
	p.allowed.Store(map[int64]bool{})
	p.registerHandlers()
	return p, nil
}

// SetAllowedChats limits who may confirm alarms to the given push target refs.
func (p *Pusher) SetAllowedChats(refs []string) {
	m := make(map[int64]bool, len(refs))
	for _, r := range refs {
		if chat, _, err := ParseTarget(r); err == nil {
			m[chat] = true
		}
	}
	p.allowed.Store(m)
}

func (p *Pusher) isAllowed(chatID int64) bool {
	m, _ := p.allowed.Load().(map[int64]bool)
	return m[chatID]
}

func (p *Pusher) registerHandlers() {
	p.bot.Handle("/confirm", func(c tele.Context) error {
		if c.Chat() == nil || !p.isAllowed(c.Chat().ID) {
			return nil
		}
		p.confirm(c.Chat().ID)
		return c.Reply("Alarm confirmed.")
	})

	p.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil || strings.TrimSpace(cb.Data) != CallbackConfirm {
			return c.Respond()
		}
		if c.Chat() == nil || !p.isAllowed(c.Chat().ID) {
			return c.Respond(&tele.CallbackResponse{Text: "Not allowed"})
		}
		p.confirm(c.Chat().ID)
		if m := c.Message(); m != nil {
			if _, err := p.bot.EditReplyMarkup(m, nil); err != nil {
				p.log.Debug("remove confirm button failed", logx.Err(err))
			}
		}
		return c.Respond(&tele.CallbackResponse{Text: "Alarm confirmed"})
	})
}

func (p *Pusher) confirm(chatID int64) {
	if p.onConfirm == nil {
		return
	}
	p.log.Info("alarm confirmed via telegram", logx.Int64("chat_id", chatID))
	ctx, cancel := context.WithTimeout(p.context(), 30*time.Second)
	defer cancel()
	p.onConfirm(ctx)
}

func (p *Pusher) context() context.Context {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.sup != nil {
		return p.sup.Context()
	}
	return context.Background()
}

// Start runs the long-poll loop under a restarting supervisor.
func (p *Pusher) Start(ctx context.Context) error {
	p.runMu.Lock()
	if p.running {
		p.runMu.Unlock()
		return nil
	}
	p.running = true
	p.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(p.log),
		rtsup.WithCancelOnError(false),
	)
	sup := p.sup
	p.runMu.Unlock()

	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		p.bot.Stop()
	})
	sup.GoRestart0("telebot.poll", func(c context.Context) {
		p.log.Info("polling started")
		p.bot.Start()
		p.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

func (p *Pusher) Stop(ctx context.Context) error {
	p.runMu.Lock()
	sup := p.sup
	p.sup = nil
	wasRunning := p.running
	p.running = false
	p.runMu.Unlock()
	if !wasRunning || sup == nil {
		return nil
	}

	sup.Cancel()
	go p.bot.Stop()

	// Long-poll may still be waiting; keep shutdown snappy.
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sup.Wait(wctx); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		p.log.Warn("telegram stop error", logx.Err(err))
	}
	return nil
}

// Send implements center.Sender.
func (p *Pusher) Send(ctx context.Context, to center.Recipient, c center.Content) center.DeliveryResult {
	chatID, threadID, err := ParseTarget(to.Ref)
	if err != nil {
		return center.Failed("%v", err)
	}
	text := FormatMessage(c)
	opt := sendOptions(c, threadID)

	done := make(chan error, 1)
	go func() {
		_, err := p.bot.Send(&tele.Chat{ID: chatID}, text, opt)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return center.Failed("telegram send: %v", err)
		}
		return center.Delivered()
	case <-ctx.Done():
		return center.Failed("telegram send: %v", ctx.Err())
	}
}

// ParseTarget parses "chatID" or "chatID/threadID".
func ParseTarget(ref string) (int64, int, error) {
	ref = strings.TrimSpace(ref)
	chatPart, threadPart, hasThread := strings.Cut(ref, "/")
	chat, err := strconv.ParseInt(strings.TrimSpace(chatPart), 10, 64)
	if err != nil || chat == 0 {
		return 0, 0, fmt.Errorf("invalid telegram chat %q", ref)
	}
	if !hasThread {
		return chat, 0, nil
	}
	thread, err := strconv.Atoi(strings.TrimSpace(threadPart))
	if err != nil || thread < 0 {
		return 0, 0, fmt.Errorf("invalid telegram thread %q", ref)
	}
	return chat, thread, nil
}

var typePrefix = map[center.MessageType]string{
	center.TypeNotification:    "ℹ️",
	center.TypeAcknowledgement: "✅",
	center.TypeAlert:           "🚨",
	center.TypeSabotage:        "⚠️",
	center.TypeBattery:         "🔋",
}

// FormatMessage renders content as Telegram HTML.
func FormatMessage(c center.Content) string {
	var b strings.Builder
	if p := typePrefix[c.Type]; p != "" {
		b.WriteString(p)
		b.WriteByte(' ')
	}
	if c.Title != "" {
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(c.Title))
		b.WriteString("</b>")
	}
	if c.Body != "" {
		if c.Title != "" {
			b.WriteByte('\n')
		}
		b.WriteString(html.EscapeString(c.Body))
	}
	return b.String()
}

func sendOptions(c center.Content, threadID int) *tele.SendOptions {
	opt := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ThreadID:              threadID,
		DisableNotification:   strings.EqualFold(strings.TrimSpace(c.Sound), SoundSilent),
	}
	if c.Confirmable {
		opt.ReplyMarkup = &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
			{Text: "Confirm alarm", Data: CallbackConfirm},
		}}}
	}
	return opt
}
