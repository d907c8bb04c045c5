package agent

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/boristopalov/gymbridge/pkg/core"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// RandomAgent samples discrete actions uniformly from [0, n).
type RandomAgent struct {
	id  string
	n   int
	rng *rand.Rand
	mu  sync.Mutex
}

func NewRandomAgent(n int, seed int64) (*RandomAgent, error) {
	if n < 1 {
		return nil, fmt.Errorf("random agent needs at least one action, got %d", n)
	}
	return &RandomAgent{
		id:  "agent-" + uuid.New().String(),
		n:   n,
		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

func (a *RandomAgent) GetID() string {
	return a.id
}

func (a *RandomAgent) Act(ctx context.Context, _ *mat.VecDense) (core.Discrete, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return core.Discrete(a.rng.Intn(a.n)), nil
}

func (a *RandomAgent) Observe(core.Transition) {}
