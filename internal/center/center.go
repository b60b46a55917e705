package center

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"notifycenter/internal/eventbus"
	"notifycenter/internal/storage"
	logx "notifycenter/pkg/logx"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Timer drives RepeatAlarmNotification. Arm replaces any running schedule.
type Timer interface {
	Arm(period time.Duration) error
	Disarm()
}

type Options struct {
	Settings  Settings
	Directory Directory
	Senders   Senders
	Store     storage.Store
	Timer     Timer
	Clock     clock.Clock
	Bus       eventbus.Bus
	Log       logx.Logger
}

// Notification is one SendNotification request.
type Notification struct {
	PushTitle    string      `json:"push_title"`
	PushText     string      `json:"push_text"`
	EmailSubject string      `json:"email_subject"`
	EmailText    string      `json:"email_text"`
	SMSText      string      `json:"sms_text"`
	Type         MessageType `json:"type"`
}

type ChannelReport struct {
	Disabled   bool `json:"disabled,omitempty"`
	Delivered  int  `json:"delivered"`
	Failed     int  `json:"failed"`
	Ineligible int  `json:"ineligible"`
}

// Report summarizes one SendNotification call.
type Report struct {
	Type       MessageType   `json:"type"`
	Suppressed bool          `json:"suppressed,omitempty"`
	Armed      bool          `json:"armed,omitempty"`
	Push       ChannelReport `json:"push"`
	Email      ChannelReport `json:"email"`
	SMS        ChannelReport `json:"sms"`
}

type Center struct {
	mu sync.Mutex

	settings Settings
	dir      Directory
	senders  Senders

	store storage.Store
	timer Timer
	clock clock.Clock
	bus   eventbus.Bus
	log   logx.Logger

	alarm storage.AlarmRecord
	// armed tracks the timer schedule so ticks racing a reset can be dropped.
	armed bool
}

func New(opts Options) *Center {
	c := &Center{
		settings: opts.Settings.withDefaults(),
		dir:      opts.Directory.clone(),
		senders:  opts.Senders,
		store:    opts.Store,
		timer:    opts.Timer,
		clock:    opts.Clock,
		bus:      opts.Bus,
		log:      opts.Log,
	}
	if c.store == nil {
		c.store = storage.NewMemory()
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.bus == nil {
		c.bus = eventbus.Nop()
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	c.log = c.log.With(logx.String("comp", "center"))
	return c
}

// Apply swaps settings and recipients. A pending alarm keeps its state; its
// timer is re-armed when the confirmation period changed or it is not running.
func (c *Center) Apply(s Settings, d Directory) {
	s = s.withDefaults()
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.settings
	c.settings = s
	c.dir = d.clone()
	if c.alarmActiveLocked() && (prev.ConfirmationPeriod != s.ConfirmationPeriod || !c.armed) {
		if err := c.armTimerLocked(); err != nil {
			c.log.Warn("re-arm alarm timer failed", logx.Err(err))
		}
	}
}

func (c *Center) SetSenders(s Senders) {
	c.mu.Lock()
	c.senders = s
	c.mu.Unlock()
}

func (c *Center) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Center) IsUnderMaintenance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.MaintenanceMode
}

// Deliveries returns the most recent delivery records, newest last.
func (c *Center) Deliveries(ctx context.Context, limit int) ([]storage.DeliveryRecord, error) {
	return c.store.RecentDeliveries(ctx, limit)
}

// SendNotification fans n out to push, email and SMS recipients in that
// order. Per-recipient failures are recorded, never returned.
func (c *Center) SendNotification(ctx context.Context, n Notification) Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	rep := Report{Type: n.Type}
	if c.suppressedLocked("send_notification") {
		rep.Suppressed = true
		return rep
	}
	c.log.Debug("dispatch notification", logx.String("type", n.Type.String()))

	rep.Push, rep.Armed = c.sendPushLocked(ctx, n.PushTitle, n.PushText, n.Type, false)
	rep.Email = c.sendEmailLocked(ctx, n)
	rep.SMS = c.sendSMSLocked(ctx, n)
	return rep
}

func (c *Center) suppressedLocked(op string) bool {
	if !c.settings.MaintenanceMode {
		return false
	}
	c.log.Warn("maintenance mode active; call suppressed", logx.String("op", op))
	c.bus.Publish(eventbus.Event{
		Type: eventbus.TopicMaintenanceSuppressed,
		Time: c.clock.Now(),
		Data: eventbus.SuppressedEvent{Operation: op},
	})
	return true
}

// sendPushLocked delivers to every eligible push target. For an initial
// Alert it arms the alarm once, at the first confirmation-required target.
func (c *Center) sendPushLocked(ctx context.Context, title, text string, t MessageType, repeat bool) (ChannelReport, bool) {
	var rep ChannelReport
	if !c.settings.PushEnabled || c.senders.Push == nil {
		rep.Disabled = true
		return rep, false
	}
	title = truncate(title, MaxPushTitle)
	armed := false
	for _, p := range c.dir.Push {
		if !p.Eligible(t) {
			rep.Ineligible++
			c.skipped(ChannelPush, p.Name, t)
			continue
		}
		confirmable := t == TypeAlert && p.RequiresConfirmation
		if confirmable && !repeat && !armed {
			armed = true
			c.armLocked(ctx, title, text)
		}
		ok := c.deliverLocked(ctx, delivery{
			channel: ChannelPush,
			sender:  c.senders.Push,
			to:      Recipient{Name: p.Name, Ref: p.Ref},
			content: Content{Title: title, Body: text, Sound: p.Sound(t), Type: t, Confirmable: confirmable},
			repeat:  repeat,
		})
		rep.add(ok)
	}
	return rep, armed
}

func (c *Center) sendEmailLocked(ctx context.Context, n Notification) ChannelReport {
	var rep ChannelReport
	if !c.settings.EmailEnabled || c.senders.Email == nil {
		rep.Disabled = true
		return rep
	}
	for _, r := range c.dir.Email {
		if !r.Eligible(n.Type) {
			rep.Ineligible++
			c.skipped(ChannelEmail, r.Name, n.Type)
			continue
		}
		ok := c.deliverLocked(ctx, delivery{
			channel: ChannelEmail,
			sender:  c.senders.Email,
			to:      Recipient{Name: r.Name, Ref: r.Ref, Address: r.Address},
			content: Content{Title: n.EmailSubject, Body: n.EmailText, Type: n.Type},
		})
		rep.add(ok)
	}
	return rep
}

func (c *Center) sendSMSLocked(ctx context.Context, n Notification) ChannelReport {
	var rep ChannelReport
	if !c.settings.SMSEnabled {
		rep.Disabled = true
		return rep
	}
	body := truncate(n.SMSText, MaxSMSText)
	for _, route := range c.dir.SMS {
		sender := c.senders.SMS[route.Provider]
		if sender == nil {
			c.log.Debug("sms provider not configured; route skipped", logx.String("provider", route.Provider))
			rep.Ineligible += len(route.Recipients)
			continue
		}
		for _, r := range route.Recipients {
			if !r.Eligible(n.Type) {
				rep.Ineligible++
				c.skipped(ChannelSMS, r.Name, n.Type)
				continue
			}
			ok := c.deliverLocked(ctx, delivery{
				channel:  ChannelSMS,
				provider: route.Provider,
				sender:   sender,
				to:       Recipient{Name: r.Name, Address: r.Phone},
				content:  Content{Body: body, Type: n.Type},
			})
			rep.add(ok)
		}
	}
	return rep
}

func (r *ChannelReport) add(ok bool) {
	if ok {
		r.Delivered++
	} else {
		r.Failed++
	}
}

type delivery struct {
	channel  Channel
	provider string
	sender   Sender
	to       Recipient
	content  Content
	repeat   bool
}

func (c *Center) deliverLocked(ctx context.Context, d delivery) bool {
	sctx, cancel := context.WithTimeout(ctx, c.settings.SendTimeout)
	res := safeSend(sctx, d.sender, d.to, d.content)
	cancel()

	name := d.to.Name
	if name == "" {
		name = d.to.Ref + d.to.Address
	}
	fields := []logx.Field{
		logx.String("channel", string(d.channel)),
		logx.String("recipient", name),
		logx.String("type", d.content.Type.String()),
		logx.Bool("repeat", d.repeat),
	}
	if d.provider != "" {
		fields = append(fields, logx.String("provider", d.provider))
	}
	topic := eventbus.TopicDeliverySent
	if res.OK {
		c.log.Debug("delivered", fields...)
	} else {
		topic = eventbus.TopicDeliveryFailed
		c.log.Warn("delivery failed", append(fields, logx.String("diag", res.Diagnostic))...)
	}

	now := c.clock.Now()
	c.bus.Publish(eventbus.Event{Type: topic, Time: now, Data: eventbus.DeliveryEvent{
		Channel:     string(d.channel),
		Recipient:   name,
		MessageType: d.content.Type.String(),
		Diagnostic:  res.Diagnostic,
	}})
	if err := c.store.AppendDelivery(ctx, storage.DeliveryRecord{
		ID:          uuid.NewString(),
		At:          now,
		Channel:     string(d.channel),
		Provider:    d.provider,
		Recipient:   name,
		MessageType: d.content.Type.String(),
		Repeat:      d.repeat,
		OK:          res.OK,
		Diagnostic:  res.Diagnostic,
	}); err != nil {
		c.log.Warn("delivery log write failed", logx.Err(err))
	}
	return res.OK
}

func (c *Center) skipped(ch Channel, name string, t MessageType) {
	c.log.Debug("recipient not eligible", logx.String("channel", string(ch)), logx.String("recipient", name), logx.String("type", t.String()))
	c.bus.Publish(eventbus.Event{Type: eventbus.TopicDeliverySkipped, Time: c.clock.Now(), Data: eventbus.DeliveryEvent{
		Channel:     string(ch),
		Recipient:   name,
		MessageType: t.String(),
	}})
}

func safeSend(ctx context.Context, s Sender, to Recipient, ct Content) (res DeliveryResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed("sender panic: %v\n%s", r, debug.Stack())
		}
	}()
	if err := ctx.Err(); err != nil {
		return Failed("%v", err)
	}
	res = s.Send(ctx, to, ct)
	if !res.OK && res.Diagnostic == "" {
		if err := ctx.Err(); err != nil {
			res.Diagnostic = err.Error()
		} else {
			res.Diagnostic = fmt.Sprintf("%s send failed", to.Name)
		}
	}
	return res
}
