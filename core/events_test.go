package core

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventBusDeliversInOrder(t *testing.T) {
	bus := NewEventBus(discardLogger())

	var order []string
	bus.Subscribe(func(ev AssessmentCompletedEvent) error {
		order = append(order, "first:"+ev.AssessmentID)
		return nil
	})
	bus.Subscribe(func(ev AssessmentCompletedEvent) error {
		order = append(order, "second:"+ev.AssessmentID)
		return nil
	})

	bus.Publish(AssessmentCompletedEvent{AssessmentID: "a-1"})
	assert.Equal(t, []string{"first:a-1", "second:a-1"}, order)
}

// TestEventBusIsolatesFailingSubscribers demonstrates that errors and panics do not stop delivery
func TestEventBusIsolatesFailingSubscribers(t *testing.T) {
	bus := NewEventBus(discardLogger())

	delivered := 0
	bus.Subscribe(func(AssessmentCompletedEvent) error { panic("boom") })
	bus.Subscribe(func(AssessmentCompletedEvent) error { return errors.New("unavailable") })
	bus.Subscribe(func(AssessmentCompletedEvent) error {
		delivered++
		return nil
	})

	assert.NotPanics(t, func() { bus.Publish(AssessmentCompletedEvent{AssessmentID: "a-1"}) })
	assert.Equal(t, 1, delivered)
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(nil)

	calls := 0
	unsubscribe := bus.Subscribe(func(AssessmentCompletedEvent) error {
		calls++
		return nil
	})
	bus.Publish(AssessmentCompletedEvent{})
	unsubscribe()
	unsubscribe()
	bus.Publish(AssessmentCompletedEvent{})

	assert.Equal(t, 1, calls)
}

func TestChannelSubscriber(t *testing.T) {
	ch := make(chan AssessmentCompletedEvent, 1)
	sub := ChannelSubscriber(ch)

	require.NoError(t, sub(AssessmentCompletedEvent{AssessmentID: "a-1"}))
	assert.ErrorIs(t, sub(AssessmentCompletedEvent{AssessmentID: "a-2"}), ErrSubscriberFull)

	ev := <-ch
	assert.Equal(t, "a-1", ev.AssessmentID)
}
