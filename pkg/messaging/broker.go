package messaging

import (
	"fmt"
	"sync"
)

// SimpleBroker implements the Broker interface.
// subscribers maps subscriber IDs to the channels events are sent on.
type SimpleBroker struct {
	subscribers map[string]chan<- Event
	mu          sync.RWMutex
}

// NewBroker creates a new event broker
func NewBroker() *SimpleBroker {
	return &SimpleBroker{
		subscribers: make(map[string]chan<- Event),
	}
}

// Publish sends ev to every subscriber without blocking. Subscribers
// with a full channel miss the event; the first of them is reported.
func (b *SimpleBroker) Publish(ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var err error
	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			if err == nil {
				err = fmt.Errorf("subscriber %s's channel is full", id)
			}
		}
	}
	return err
}

// Subscribe registers a channel to receive events
func (b *SimpleBroker) Subscribe(id string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return fmt.Errorf("subscriber %s already exists", id)
	}

	b.subscribers[id] = ch
	return nil
}

// Unsubscribe removes a subscription
func (b *SimpleBroker) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return fmt.Errorf("subscriber %s does not exist", id)
	}

	delete(b.subscribers, id)
	return nil
}

func (b *SimpleBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- Event)
}
