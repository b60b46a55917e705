package center

import (
	"context"
	"time"

	"notifycenter/internal/eventbus"
	"notifycenter/internal/storage"
	logx "notifycenter/pkg/logx"
)

// AlarmStatus is a read-only snapshot of the confirmation state machine.
type AlarmStatus struct {
	Pending   bool      `json:"pending"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text,omitempty"`
	Attempt   int       `json:"attempt"`
	Limit     int       `json:"limit"`
	Period    string    `json:"period"`
	ArmedAt   time.Time `json:"armed_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (c *Center) Alarm() AlarmStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return AlarmStatus{
		Pending:   c.alarmActiveLocked(),
		Title:     c.alarm.Title,
		Text:      c.alarm.Text,
		Attempt:   c.alarm.Attempt,
		Limit:     c.settings.AlarmAttempts,
		Period:    c.settings.ConfirmationPeriod.String(),
		ArmedAt:   c.alarm.ArmedAt,
		UpdatedAt: c.alarm.UpdatedAt,
	}
}

// Resume restores the persisted alarm state and re-arms the timer when an
// alarm was pending at shutdown.
func (c *Center) Resume(ctx context.Context) error {
	rec, err := c.store.LoadAlarm(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alarm = rec
	if !rec.Pending() {
		return nil
	}
	c.log.Info("resuming pending alarm",
		logx.String("title", rec.Title),
		logx.Int("attempt", rec.Attempt),
		logx.Int("limit", c.settings.AlarmAttempts),
	)
	// Armed even in maintenance mode: ticks are suppressed at the gate and
	// resume once maintenance ends.
	return c.armTimerLocked()
}

// RepeatAlarmNotification runs one repeat step. It resends the stored alarm as
// an Alert push while attempts remain and resets once the limit is reached.
// Repeats never re-arm the alarm.
func (c *Center) RepeatAlarmNotification(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repeatLocked(ctx)
}

// AlarmTick is RepeatAlarmNotification for the timer. A tick that was already
// dispatched when the alarm got confirmed or reset is dropped.
func (c *Center) AlarmTick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		c.log.Debug("stale alarm tick dropped", logx.Int("attempt", c.alarm.Attempt))
		return
	}
	c.repeatLocked(ctx)
}

func (c *Center) repeatLocked(ctx context.Context) {
	if c.suppressedLocked("repeat_alarm_notification") {
		return
	}

	next := c.alarm.Attempt + 1
	limit := c.settings.AlarmAttempts
	if next > limit {
		// Limit is zero or was lowered below the current attempt.
		c.log.Debug("alarm attempt beyond limit; resetting", logx.Int("attempt", next), logx.Int("limit", limit))
		c.resetLocked(ctx, eventbus.TopicAlarmExhausted)
		return
	}

	if c.alarm.Title != "" && c.alarm.Text != "" {
		c.sendPushLocked(ctx, c.alarm.Title, c.alarm.Text, TypeAlert, true)
	} else {
		c.log.Debug("alarm tick without stored content; nothing resent", logx.Int("attempt", next))
	}
	c.alarm.Attempt = next
	c.alarm.UpdatedAt = c.clock.Now()
	c.persistLocked(ctx)
	c.publishAlarm(eventbus.TopicAlarmRepeated)

	if next == limit {
		c.log.Info("alarm attempts exhausted", logx.Int("limit", limit))
		c.resetLocked(ctx, eventbus.TopicAlarmExhausted)
	}
}

// ConfirmAlarmNotification acknowledges the pending alarm from any attempt.
// It is a no-op when nothing is pending.
func (c *Center) ConfirmAlarmNotification(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suppressedLocked("confirm_alarm_notification") {
		return
	}
	if c.alarm.Title == "" && c.alarm.Text == "" && c.alarm.Attempt == 0 {
		c.disarmTimerLocked()
		return
	}
	c.log.Info("alarm confirmed", logx.Int("attempt", c.alarm.Attempt))
	c.resetLocked(ctx, eventbus.TopicAlarmConfirmed)
}

func (c *Center) armLocked(ctx context.Context, title, text string) {
	now := c.clock.Now()
	c.alarm = storage.AlarmRecord{Title: title, Text: text, Attempt: 1, ArmedAt: now, UpdatedAt: now}
	c.persistLocked(ctx)
	if err := c.armTimerLocked(); err != nil {
		c.log.Warn("arm alarm timer failed", logx.Err(err))
	}
	c.log.Info("alarm armed",
		logx.String("title", title),
		logx.Duration("period", c.settings.ConfirmationPeriod),
		logx.Int("limit", c.settings.AlarmAttempts),
	)
	c.publishAlarm(eventbus.TopicAlarmArmed)
}

func (c *Center) resetLocked(ctx context.Context, topic string) {
	c.disarmTimerLocked()
	prev := c.alarm
	c.alarm = storage.AlarmRecord{UpdatedAt: c.clock.Now()}
	c.persistLocked(ctx)
	c.bus.Publish(eventbus.Event{Type: topic, Time: c.alarm.UpdatedAt, Data: eventbus.AlarmEvent{
		Title:   prev.Title,
		Attempt: prev.Attempt,
		Limit:   c.settings.AlarmAttempts,
	}})
}

// alarmActiveLocked reports a stored alarm or a running repeat schedule. An
// Alert with empty push content arms the timer without stored content.
func (c *Center) alarmActiveLocked() bool {
	return c.alarm.Pending() || c.armed
}

func (c *Center) armTimerLocked() error {
	if c.timer == nil {
		return nil
	}
	if err := c.timer.Arm(c.settings.ConfirmationPeriod); err != nil {
		return err
	}
	c.armed = true
	return nil
}

func (c *Center) disarmTimerLocked() {
	if c.timer != nil {
		c.timer.Disarm()
	}
	c.armed = false
}

func (c *Center) persistLocked(ctx context.Context) {
	if err := c.store.SaveAlarm(ctx, c.alarm); err != nil {
		c.log.Warn("persist alarm state failed", logx.Err(err))
	}
}

func (c *Center) publishAlarm(topic string) {
	c.bus.Publish(eventbus.Event{Type: topic, Time: c.clock.Now(), Data: eventbus.AlarmEvent{
		Title:   c.alarm.Title,
		Attempt: c.alarm.Attempt,
		Limit:   c.settings.AlarmAttempts,
	}})
}
