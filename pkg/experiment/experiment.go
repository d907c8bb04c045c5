package experiment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/boristopalov/gymbridge/pkg/agent"
	"github.com/boristopalov/gymbridge/pkg/core"
	"github.com/boristopalov/gymbridge/pkg/environment"
	"github.com/boristopalov/gymbridge/pkg/messaging"
)

// EpisodeStats summarizes a single episode.
type EpisodeStats struct {
	Episode    int
	Seed       uint64
	Steps      int
	Return     float64
	Terminated bool
	Truncated  bool
}

type Status struct {
	Running   bool
	Episode   int
	StartTime time.Time
	EndTime   time.Time
}

// Rollout drives an environment with an agent for a number of episodes.
type Rollout[A core.Marshalable] struct {
	env       *environment.Env[A]
	agent     agent.Agent[A]
	publisher messaging.Publisher
	episodes  int
	maxSteps  int
	seed      uint64

	mu     sync.RWMutex
	status Status
}

type RolloutParams struct {
	Episodes  int
	MaxSteps  int
	Seed      uint64
	Publisher messaging.Publisher
}

type RolloutOption func(*RolloutParams)

func WithEpisodes(n int) RolloutOption {
	return func(p *RolloutParams) {
		p.Episodes = n
	}
}

// WithMaxSteps caps episode length. Zero runs until the environment
// terminates or truncates.
func WithMaxSteps(n int) RolloutOption {
	return func(p *RolloutParams) {
		p.MaxSteps = n
	}
}

// WithSeed sets the base seed; episode i is reset with seed+i.
func WithSeed(seed uint64) RolloutOption {
	return func(p *RolloutParams) {
		p.Seed = seed
	}
}

func WithPublisher(pub messaging.Publisher) RolloutOption {
	return func(p *RolloutParams) {
		p.Publisher = pub
	}
}

func defaultRolloutParams() *RolloutParams {
	return &RolloutParams{
		Episodes: 1,
		MaxSteps: 500,
	}
}

func NewRollout[A core.Marshalable](env *environment.Env[A], ag agent.Agent[A], opts ...RolloutOption) (*Rollout[A], error) {
	if env == nil || ag == nil {
		return nil, errors.New("rollout needs an environment and an agent")
	}
	params := defaultRolloutParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.Episodes < 1 {
		return nil, fmt.Errorf("episodes must be positive, got %d", params.Episodes)
	}
	if params.MaxSteps < 0 {
		return nil, fmt.Errorf("max steps must not be negative, got %d", params.MaxSteps)
	}
	return &Rollout[A]{
		env:       env,
		agent:     ag,
		publisher: params.Publisher,
		episodes:  params.Episodes,
		maxSteps:  params.MaxSteps,
		seed:      params.Seed,
	}, nil
}

func (r *Rollout[A]) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Run plays every episode and returns their stats. On error the stats of
// the episodes completed so far are returned alongside it.
func (r *Rollout[A]) Run(ctx context.Context) ([]EpisodeStats, error) {
	r.mu.Lock()
	r.status = Status{Running: true, StartTime: time.Now()}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.status.Running = false
		r.status.EndTime = time.Now()
		r.mu.Unlock()
	}()

	stats := make([]EpisodeStats, 0, r.episodes)
	for ep := 0; ep < r.episodes; ep++ {
		r.mu.Lock()
		r.status.Episode = ep
		r.mu.Unlock()

		st, err := r.runEpisode(ctx, ep)
		if err != nil {
			return stats, fmt.Errorf("episode %d: %w", ep, err)
		}
		log.Printf("Episode %d of %s finished after %d steps with return %.2f", ep, r.env.Name(), st.Steps, st.Return)
		stats = append(stats, st)
	}
	return stats, nil
}

func (r *Rollout[A]) runEpisode(ctx context.Context, ep int) (EpisodeStats, error) {
	seed := r.seed + uint64(ep)
	st := EpisodeStats{Episode: ep, Seed: seed}

	obs, err := r.env.Reset(seed)
	if err != nil {
		return st, err
	}
	r.publish(messaging.Event{Kind: messaging.EventReset, Episode: ep})

	for r.maxSteps == 0 || st.Steps < r.maxSteps {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		default:
		}

		action, err := r.agent.Act(ctx, obs)
		if err != nil {
			return st, fmt.Errorf("agent %s: %w", r.agent.GetID(), err)
		}
		step, err := r.env.Step(action)
		if err != nil {
			return st, err
		}

		t := core.Transition{
			Episode:   ep,
			Step:      st.Steps,
			Action:    action,
			Reward:    step.Reward,
			Done:      step.Done,
			Truncated: step.Truncated,
		}
		r.agent.Observe(t)
		r.publish(messaging.Event{
			Kind:      messaging.EventStep,
			Episode:   ep,
			Step:      st.Steps,
			Action:    action,
			Reward:    step.Reward,
			Done:      step.Done,
			Truncated: step.Truncated,
		})

		st.Steps++
		st.Return += step.Reward
		obs = step.Observation
		if step.Done || step.Truncated {
			st.Terminated = step.Done
			st.Truncated = step.Truncated
			break
		}
	}

	r.publish(messaging.Event{
		Kind:      messaging.EventEpisodeEnd,
		Episode:   ep,
		Step:      st.Steps,
		Reward:    st.Return,
		Done:      st.Terminated,
		Truncated: st.Truncated,
	})
	return st, nil
}

// publish fills in the source fields and never fails the rollout.
func (r *Rollout[A]) publish(ev messaging.Event) {
	if r.publisher == nil {
		return
	}
	ev.Source = r.env.ID()
	ev.Env = r.env.Name()
	ev.Timestamp = time.Now()
	if err := r.publisher.Publish(ev); err != nil {
		log.Printf("Failed to publish %s event: %v", ev.Kind, err)
	}
}
