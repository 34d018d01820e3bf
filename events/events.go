// Package events publishes run-completed notifications.
package events

import (
	"context"
	"sync"
	"time"
)

// TypeRunCompleted is the type of the event published after every run.
const TypeRunCompleted = "run.completed"

// Event describes a finished run.
type Event struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	InstanceID string    `json:"instance_id"`
	Status     string    `json:"status"`
	Objective  *float64  `json:"objective,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers events. Publish must not block on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Broker is an in-process Publisher with per-instance subscriptions.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // instance ID -> channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

// Subscribe returns a channel receiving the events of one instance.
func (b *Broker) Subscribe(instanceID string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[instanceID] == nil {
		b.subs[instanceID] = map[chan Event]struct{}{}
	}
	b.subs[instanceID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (b *Broker) Unsubscribe(instanceID string, ch chan Event) {
	b.mu.Lock()
	if m := b.subs[instanceID]; m != nil {
		if _, ok := m[ch]; ok {
			delete(m, ch)
			close(ch)
		}
		if len(m) == 0 {
			delete(b.subs, instanceID)
		}
	}
	b.mu.Unlock()
}

// Publish delivers evt to every subscriber of its instance. Events for
// full subscribers are dropped.
func (b *Broker) Publish(_ context.Context, evt Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[evt.InstanceID] {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

// Multi fans an event out to several publishers and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil && first == nil {
			first = err
		}
	}
	return first
}
