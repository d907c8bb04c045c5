package messaging

import (
	"testing"
	"time"
)

func TestBroker(t *testing.T) {
	t.Run("test fan out", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		ch1 := make(chan Event, 1)
		ch2 := make(chan Event, 1)

		if err := broker.Subscribe("console", ch1); err != nil {
			t.Fatalf("Failed to subscribe console: %v", err)
		}
		if err := broker.Subscribe("stats", ch2); err != nil {
			t.Fatalf("Failed to subscribe stats: %v", err)
		}

		ev := Event{
			Kind:      EventStep,
			Source:    "env-1",
			Episode:   2,
			Step:      7,
			Reward:    1,
			Timestamp: time.Now(),
		}
		if err := broker.Publish(ev); err != nil {
			t.Fatalf("Failed to publish event: %v", err)
		}

		for name, ch := range map[string]chan Event{"console": ch1, "stats": ch2} {
			select {
			case received := <-ch:
				if received.Kind != EventStep || received.Step != 7 || received.Source != "env-1" {
					t.Errorf("Unexpected event received by %s: %+v", name, received)
				}
			case <-time.After(time.Second):
				t.Errorf("Timeout waiting for event on %s", name)
			}
		}
	})

	t.Run("test subscription management", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		ch := make(chan Event, 1)

		if err := broker.Subscribe("console", ch); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}

		// Test duplicate subscription
		if err := broker.Subscribe("console", ch); err == nil {
			t.Error("Expected error for duplicate subscription, got nil")
		}

		if err := broker.Unsubscribe("console"); err != nil {
			t.Fatalf("Failed to unsubscribe: %v", err)
		}

		// Test unsubscribe non-existent subscriber
		if err := broker.Unsubscribe("console"); err == nil {
			t.Error("Expected error for unsubscribing non-existent subscriber, got nil")
		}

		if err := broker.Publish(Event{Kind: EventReset}); err != nil {
			t.Errorf("Publishing without subscribers should succeed, got %v", err)
		}
		select {
		case ev := <-ch:
			t.Errorf("Unsubscribed channel received %+v", ev)
		default:
		}
	})

	t.Run("test channel full behavior", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(func() {
			broker.Reset()
		})
		full := make(chan Event, 1)
		open := make(chan Event, 2)

		if err := broker.Subscribe("full", full); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		if err := broker.Subscribe("open", open); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}

		// Fill the channel
		if err := broker.Publish(Event{Kind: EventStep, Step: 1}); err != nil {
			t.Fatalf("Failed to publish first event: %v", err)
		}

		if err := broker.Publish(Event{Kind: EventStep, Step: 2}); err == nil {
			t.Error("Expected error when publishing to full channel, got nil")
		}
		if len(open) != 2 {
			t.Errorf("Subscriber with room should still receive both events, got %d", len(open))
		}
	})
}
