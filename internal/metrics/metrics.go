// Package metrics turns notification center events into Prometheus series.
package metrics

import (
	"context"
	"fmt"
	"io"

	"notifycenter/internal/eventbus"

	vm "github.com/VictoriaMetrics/metrics"
)

// Recorder owns a private metric set so tests and multiple instances do not
// share global state.
type Recorder struct {
	set *vm.Set
}

// New creates a recorder. attempt reports the current alarm attempt and
// backs the notify_alarm_attempt gauge.
func New(attempt func() int) *Recorder {
	r := &Recorder{set: vm.NewSet()}
	if attempt != nil {
		r.set.NewGauge("notify_alarm_attempt", func() float64 { return float64(attempt()) })
	}
	return r
}

// Run consumes events until ctx is done or the channel closes. Callers
// subscribe before starting it so no early event is missed.
func (r *Recorder) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			r.Observe(e)
		}
	}
}

func (r *Recorder) Observe(e eventbus.Event) {
	switch e.Type {
	case eventbus.TopicDeliverySent, eventbus.TopicDeliveryFailed, eventbus.TopicDeliverySkipped:
		d, _ := e.Data.(eventbus.DeliveryEvent)
		result := map[string]string{
			eventbus.TopicDeliverySent:    "sent",
			eventbus.TopicDeliveryFailed:  "failed",
			eventbus.TopicDeliverySkipped: "skipped",
		}[e.Type]
		r.set.GetOrCreateCounter(fmt.Sprintf(`notify_deliveries_total{channel=%q,type=%q,result=%q}`,
			d.Channel, d.MessageType, result)).Inc()
	case eventbus.TopicAlarmArmed, eventbus.TopicAlarmRepeated, eventbus.TopicAlarmConfirmed, eventbus.TopicAlarmExhausted:
		r.set.GetOrCreateCounter(fmt.Sprintf(`notify_alarm_events_total{event=%q}`, e.Type)).Inc()
	case eventbus.TopicMaintenanceSuppressed:
		s, _ := e.Data.(eventbus.SuppressedEvent)
		r.set.GetOrCreateCounter(fmt.Sprintf(`notify_suppressed_total{op=%q}`, s.Operation)).Inc()
	}
}

// WritePrometheus writes the recorder's series, plus go_* and process_*
// series when process is set.
func (r *Recorder) WritePrometheus(w io.Writer, process bool) {
	r.set.WritePrometheus(w)
	if process {
		vm.WriteProcessMetrics(w)
	}
}
