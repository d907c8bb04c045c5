package core

import (
	"gonum.org/v1/gonum/mat"
)

// Discrete is an action drawn from a discrete action space.
type Discrete int64

func (d Discrete) MarshalGym() any {
	return int64(d)
}

// Continuous is an action vector for a box action space.
type Continuous []float64

// MarshalGym returns a copy so the runtime never aliases the caller's slice.
func (c Continuous) MarshalGym() any {
	out := make([]float64, len(c))
	copy(out, c)
	return out
}

// Step is the result of a single environment step.
type Step[A Marshalable] struct {
	Observation *mat.VecDense
	Action      A
	Reward      float64
	Done        bool
	// Truncated is only set by environments reporting the
	// terminated/truncated pair; Done carries the terminated flag.
	Truncated bool
}

// WithObservation returns a copy of the step with obs as its observation.
func (s Step[A]) WithObservation(obs *mat.VecDense) Step[A] {
	return Step[A]{
		Observation: obs,
		Action:      s.Action,
		Reward:      s.Reward,
		Done:        s.Done,
		Truncated:   s.Truncated,
	}
}

// Transition is a compact record of one step, used for agent memory
// and rollout events.
type Transition struct {
	Episode   int
	Step      int
	Action    any
	Reward    float64
	Done      bool
	Truncated bool
}
