package messaging

import (
	"time"
)

type EventKind string

const (
	EventReset      EventKind = "reset"
	EventStep       EventKind = "step"
	EventEpisodeEnd EventKind = "episode_end"
)

// Event is emitted by a rollout as it drives an environment.
type Event struct {
	Kind      EventKind
	Source    string // environment instance ID
	Env       string // environment name
	Episode   int
	Step      int
	Action    any
	Reward    float64 // step reward, or episode return for EventEpisodeEnd
	Done      bool
	Truncated bool
	Timestamp time.Time
}

// Publisher can emit events
type Publisher interface {
	Publish(ev Event) error
}

// Broker fans events out to subscribers
type Broker interface {
	Publisher
	// Subscribe registers a channel under id
	Subscribe(id string, ch chan<- Event) error
	// Unsubscribe removes a subscription
	Unsubscribe(id string) error
}
