// Package alarmtimer provides the repeating tick that drives alarm
// re-notification.
package alarmtimer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "notifycenter/pkg/logx"

	"github.com/robfig/cron/v3"
)

// MinPeriod is the cron resolution.
const MinPeriod = time.Second

var ErrPeriodTooShort = errors.New("alarm period below one second")

// Timer runs fn every armed period until disarmed. At most one schedule is
// active; Arm replaces the previous one.
type Timer struct {
	mu sync.Mutex

	log logx.Logger
	fn  func(ctx context.Context)
	c   *cron.Cron

	ctx     context.Context
	id      cron.EntryID
	period  time.Duration
	running bool

	// gen invalidates ticks that were already dispatched when Arm or Disarm ran.
	gen atomic.Uint64
}

func New(fn func(ctx context.Context), log logx.Logger) *Timer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Timer{
		log: log.With(logx.String("comp", "alarmtimer")),
		fn:  fn,
		c:   cron.New(cron.WithLocation(time.Local)),
		ctx: context.Background(),
	}
}

func (t *Timer) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.ctx = ctx
	t.running = true
	t.c.Start()
}

// Stop halts the scheduler and waits for running ticks until ctx is done.
func (t *Timer) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	t.mu.Unlock()

	done := t.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Timer) Arm(period time.Duration) error {
	if period < MinPeriod {
		return fmt.Errorf("%w: %s", ErrPeriodTooShort, period)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeLocked()
	gen := t.gen.Add(1)
	t.id = t.c.Schedule(cron.Every(period), cron.FuncJob(func() { t.tick(gen) }))
	t.period = period
	t.log.Debug("armed", logx.Duration("period", period))
	return nil
}

func (t *Timer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.id == 0 {
		return
	}
	t.removeLocked()
	t.gen.Add(1)
	t.log.Debug("disarmed")
}

// Period returns the armed period, or zero when disarmed.
func (t *Timer) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

func (t *Timer) removeLocked() {
	if t.id != 0 {
		t.c.Remove(t.id)
		t.id = 0
	}
	t.period = 0
}

func (t *Timer) tick(gen uint64) {
	if t.gen.Load() != gen {
		return
	}
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			t.log.Error("panic in alarm tick", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	t.fn(ctx)
}
