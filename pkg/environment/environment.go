package environment

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/boristopalov/gymbridge/pkg/core"
)

// GymModule is the module providing the environment factory.
const GymModule = "gymnasium"

// Env is a session of one Gymnasium environment. Action space size and
// observation shape are read once in Make and never re-queried.
type Env[A core.Marshalable] struct {
	id               string
	name             string
	rt               core.Runtime
	env              core.Object
	actionSpace      int
	observationSpace []int

	// closed is guarded by the runtime lock.
	closed bool
}

// Make creates a new session of the named environment, equivalent to
// gymnasium.make(name).
func Make[A core.Marshalable](rt core.Runtime, name string) (*Env[A], error) {
	e := &Env[A]{
		id:   "env-" + uuid.New().String(),
		name: name,
		rt:   rt,
	}

	err := WithRuntime(rt, func() error {
		gym, err := rt.Import(GymModule)
		if err != nil {
			return err
		}
		defer gym.Release()

		env, err := gym.CallMethod("make", []any{name}, nil)
		if err != nil {
			return err
		}

		actionSpace, err := actionSpaceSize(env)
		if err != nil {
			env.Release()
			return fmt.Errorf("action space: %w", err)
		}
		observationSpace, err := spaceShape(env, "observation_space")
		if err != nil {
			env.Release()
			return fmt.Errorf("observation space: %w", err)
		}

		e.env = env
		e.actionSpace = actionSpace
		e.observationSpace = observationSpace
		return nil
	})
	if err != nil {
		return nil, &ExternalCallError{Op: "make", Env: name, Err: err}
	}

	log.Printf("Created %s (%s): action space %d, observation shape %v", name, e.id, e.actionSpace, e.observationSpace)
	return e, nil
}

// actionSpaceSize uses the discrete count when the space has one and
// falls back to the first dimension of its shape.
func actionSpaceSize(env core.Object) (int, error) {
	space, err := env.Attr("action_space")
	if err != nil {
		return 0, err
	}
	defer space.Release()

	discrete, err := space.HasAttr("n")
	if err != nil {
		return 0, err
	}
	if discrete {
		var n int
		if err := extractAttr(space, "n", &n); err != nil {
			return 0, err
		}
		return n, nil
	}

	var shape []int
	if err := extractAttr(space, "shape", &shape); err != nil {
		return 0, err
	}
	if len(shape) == 0 {
		return 0, ErrEmptyShape
	}
	return shape[0], nil
}

func spaceShape(env core.Object, attr string) ([]int, error) {
	space, err := env.Attr(attr)
	if err != nil {
		return nil, err
	}
	defer space.Release()

	var shape []int
	if err := extractAttr(space, "shape", &shape); err != nil {
		return nil, err
	}
	return shape, nil
}

func extractAttr(obj core.Object, name string, dst any) error {
	attr, err := obj.Attr(name)
	if err != nil {
		return err
	}
	defer attr.Release()
	return attr.Extract(dst)
}

func extractItem(obj core.Object, i int, dst any) error {
	item, err := obj.Item(i)
	if err != nil {
		return fmt.Errorf("item %d: %w", i, err)
	}
	defer item.Release()
	if err := item.Extract(dst); err != nil {
		return fmt.Errorf("item %d: %w", i, err)
	}
	return nil
}

// call runs fn under the runtime lock unless the environment is closed.
func (e *Env[A]) call(fn func() error) error {
	return WithRuntime(e.rt, func() error {
		if e.closed {
			return ErrClosed
		}
		return fn()
	})
}

// Reset resets the environment with the given seed and returns the
// initial observation. The info dict returned alongside it is dropped.
func (e *Env[A]) Reset(seed uint64) (*mat.VecDense, error) {
	var obs []float32
	err := e.call(func() error {
		res, err := e.env.CallMethod("reset", nil, map[string]any{"seed": seed})
		if err != nil {
			return err
		}
		defer res.Release()
		return extractItem(res, 0, &obs)
	})
	if err != nil {
		return nil, e.wrap("reset", err)
	}
	return newObservation(obs)
}

// Step applies action and returns the resulting observation, reward
// and done flag. The returned step carries action unchanged.
func (e *Env[A]) Step(action A) (core.Step[A], error) {
	var (
		obs       []float32
		reward    float64
		done      bool
		truncated bool
	)
	err := e.call(func() error {
		res, err := e.env.CallMethod("step", []any{action.MarshalGym()}, nil)
		if err != nil {
			return err
		}
		defer res.Release()

		if err := extractItem(res, 0, &obs); err != nil {
			return err
		}
		if err := extractItem(res, 1, &reward); err != nil {
			return err
		}
		if err := extractItem(res, 2, &done); err != nil {
			return err
		}

		// (obs, reward, terminated, truncated, info)
		n, err := res.Len()
		if err != nil {
			return err
		}
		if n == 5 {
			return extractItem(res, 3, &truncated)
		}
		return nil
	})
	if err != nil {
		return core.Step[A]{}, e.wrap("step", err)
	}

	o, err := newObservation(obs)
	if err != nil {
		return core.Step[A]{}, err
	}
	return core.Step[A]{
		Observation: o,
		Action:      action,
		Reward:      reward,
		Done:        done,
		Truncated:   truncated,
	}, nil
}

// Close closes the external environment and releases the handle.
// Closing twice is a no-op.
func (e *Env[A]) Close() error {
	return WithRuntime(e.rt, func() error {
		if e.closed {
			return nil
		}
		e.closed = true
		defer e.env.Release()

		res, err := e.env.CallMethod("close", nil, nil)
		if err != nil {
			return e.wrap("close", err)
		}
		res.Release()
		return nil
	})
}

func (e *Env[A]) wrap(op string, err error) error {
	if errors.Is(err, ErrClosed) {
		return err
	}
	return &ExternalCallError{Op: op, Env: e.name, Err: err}
}

// ActionSpace returns the number of allowed actions for this environment.
func (e *Env[A]) ActionSpace() int {
	return e.actionSpace
}

// ObservationSpace returns the shape of the observation tensors.
func (e *Env[A]) ObservationSpace() []int {
	shape := make([]int, len(e.observationSpace))
	copy(shape, e.observationSpace)
	return shape
}

// ObservationSize is the number of elements in one observation.
func (e *Env[A]) ObservationSize() int {
	size := 1
	for _, d := range e.observationSpace {
		size *= d
	}
	return size
}

func (e *Env[A]) Name() string {
	return e.name
}

func (e *Env[A]) ID() string {
	return e.id
}
