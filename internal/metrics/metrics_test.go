package metrics

import (
	"bytes"
	"context"
	"testing"
	"time"

	"notifycenter/internal/eventbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCountsEvents(t *testing.T) {
	r := New(func() int { return 2 })
	sent := eventbus.DeliveryEvent{Channel: "push", MessageType: "alert"}

	r.Observe(eventbus.Event{Type: eventbus.TopicDeliverySent, Data: sent})
	r.Observe(eventbus.Event{Type: eventbus.TopicDeliverySent, Data: sent})
	r.Observe(eventbus.Event{Type: eventbus.TopicDeliveryFailed, Data: eventbus.DeliveryEvent{Channel: "sms", MessageType: "alert"}})
	r.Observe(eventbus.Event{Type: eventbus.TopicAlarmArmed, Data: eventbus.AlarmEvent{Attempt: 1}})
	r.Observe(eventbus.Event{Type: eventbus.TopicMaintenanceSuppressed, Data: eventbus.SuppressedEvent{Operation: "send_notification"}})
	r.Observe(eventbus.Event{Type: "something.else"})

	var buf bytes.Buffer
	r.WritePrometheus(&buf, false)
	out := buf.String()

	assert.Contains(t, out, `notify_deliveries_total{channel="push",type="alert",result="sent"} 2`)
	assert.Contains(t, out, `notify_deliveries_total{channel="sms",type="alert",result="failed"} 1`)
	assert.Contains(t, out, `notify_alarm_events_total{event="alarm.armed"} 1`)
	assert.Contains(t, out, `notify_suppressed_total{op="send_notification"} 1`)
	assert.Contains(t, out, "notify_alarm_attempt 2")
	assert.NotContains(t, out, "go_goroutines")
}

func TestRunConsumesBus(t *testing.T) {
	bus := eventbus.New()
	r := New(nil)

	events, unsub := bus.Subscribe(16)
	defer unsub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, events)
		close(done)
	}()

	require.Eventually(t, func() bool {
		bus.Publish(eventbus.Event{Type: eventbus.TopicAlarmConfirmed})
		var buf bytes.Buffer
		r.WritePrometheus(&buf, false)
		return bytes.Contains(buf.Bytes(), []byte(`notify_alarm_events_total{event="alarm.confirmed"}`))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
