package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(4)
	defer unsubA()
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: TopicAlarmArmed, Data: AlarmEvent{Attempt: 1, Limit: 3}})

	ea := <-a
	ec := <-c
	require.Equal(t, TopicAlarmArmed, ea.Type)
	require.Equal(t, TopicAlarmArmed, ec.Type)
	require.False(t, ea.Time.IsZero())
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TopicDeliverySent})
	b.Publish(Event{Type: TopicDeliveryFailed})

	require.Len(t, ch, 1)
	require.Equal(t, TopicDeliverySent, (<-ch).Type)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	require.False(t, ok)
	b.Publish(Event{Type: TopicDeliverySent})
}
