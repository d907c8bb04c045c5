package main

import (
	"fmt"
	"io"

	"github.com/boristopalov/gymbridge/pkg/messaging"
)

const reporterID = "console"

// startReporter prints rollout events to w until stop is called.
func startReporter(b messaging.Broker, w io.Writer) (stop func(), err error) {
	events := make(chan messaging.Event, 256)
	if err := b.Subscribe(reporterID, events); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			fmt.Fprintln(w, formatEvent(ev))
		}
	}()
	return func() {
		b.Unsubscribe(reporterID)
		close(events)
		<-done
	}, nil
}

func formatEvent(ev messaging.Event) string {
	switch ev.Kind {
	case messaging.EventReset:
		return fmt.Sprintf("[%s] episode %d reset", ev.Env, ev.Episode)
	case messaging.EventStep:
		return fmt.Sprintf("[%s] episode %d step %d: action=%v reward=%.3f done=%t truncated=%t",
			ev.Env, ev.Episode, ev.Step, ev.Action, ev.Reward, ev.Done, ev.Truncated)
	case messaging.EventEpisodeEnd:
		return fmt.Sprintf("[%s] episode %d ended after %d steps, return %.3f", ev.Env, ev.Episode, ev.Step, ev.Reward)
	default:
		return fmt.Sprintf("[%s] %s", ev.Env, ev.Kind)
	}
}
