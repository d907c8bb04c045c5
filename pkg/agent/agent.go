package agent

import (
	"context"

	"github.com/boristopalov/gymbridge/pkg/core"
	"gonum.org/v1/gonum/mat"
)

// Agent picks actions for an environment with action type A.
type Agent[A core.Marshalable] interface {
	GetID() string
	// Act returns the action to take given the current observation
	Act(ctx context.Context, obs *mat.VecDense) (A, error)
	// Observe is called with the outcome of every step
	Observe(t core.Transition)
}

type ModelInfo struct {
	Id     string         // e.g. "gpt-4o-mini"
	Config map[string]any // model-specific configuration
}
