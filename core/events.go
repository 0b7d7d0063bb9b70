package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AssessmentCompletedEvent is published after every completed assessment
type AssessmentCompletedEvent struct {
	AssessmentID   string         `json:"assessment_id"`
	EntryPoint     string         `json:"entry_point"`
	Score          int            `json:"score"`
	Level          RiskLevel      `json:"level"`
	Frameworks     []Framework    `json:"frameworks"`
	ViolationCount int            `json:"violation_count"`
	FindingCounts  map[string]int `json:"finding_counts"`
	CompletedAt    time.Time      `json:"completed_at"`
	Duration       time.Duration  `json:"duration"`
}

// Subscriber receives assessment-completed events. A returned error is logged, never propagated.
type Subscriber func(AssessmentCompletedEvent) error

// ErrSubscriberFull is returned by channel subscribers whose buffer is full
var ErrSubscriberFull = errors.New("subscriber channel full")

// ChannelSubscriber forwards events to ch without blocking; events are dropped when ch is full
func ChannelSubscriber(ch chan<- AssessmentCompletedEvent) Subscriber {
	return func(ev AssessmentCompletedEvent) error {
		select {
		case ch <- ev:
			return nil
		default:
			return ErrSubscriberFull
		}
	}
}

type subscription struct {
	id int
	fn Subscriber
}

// EventBus delivers assessment-completed events synchronously to subscribers
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID int
	logger *slog.Logger
}

// NewEventBus creates an event bus logging subscriber failures to logger
func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{logger: logger}
}

// Subscribe registers fn and returns a function that removes it
func (b *EventBus) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every subscriber in registration order.
// Subscriber errors and panics are logged and counted.
func (b *EventBus) Publish(ev AssessmentCompletedEvent) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := deliver(s.fn, ev); err != nil {
			SubscriberErrors.Inc()
			b.logger.Warn("assessment subscriber failed",
				"assessment_id", ev.AssessmentID,
				"subscriber", s.id,
				"error", err)
		}
	}
}

func deliver(fn Subscriber, ev AssessmentCompletedEvent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("subscriber panicked: %v", rec)
		}
	}()
	return fn(ev)
}
