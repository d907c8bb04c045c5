// Package envtest provides an in-memory runtime that behaves like a
// Python interpreter with Gymnasium installed, for tests that should not
// need Python.
package envtest

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/boristopalov/gymbridge/pkg/core"
)

var (
	ErrModuleNotFound = errors.New("no module named")
	ErrNotFound       = errors.New("environment not found")
	ErrNoAttribute    = errors.New("no such attribute")
	ErrType           = errors.New("type mismatch")
	ErrIndex          = errors.New("index out of range")
	ErrInvalidAction  = errors.New("invalid action")
	ErrReleased       = errors.New("object released")
)

// Spec describes a fake environment.
type Spec struct {
	// ActionN is exposed as action_space.n when positive. Otherwise the
	// action space only exposes ActionShape.
	ActionN          int
	ActionShape      []int
	ObservationShape []int
	// EpisodeLength terminates the episode after that many steps. Zero
	// never terminates.
	EpisodeLength int
	// TruncateAt sets the truncated flag after that many steps.
	TruncateAt int
	// Legacy returns the old (obs, reward, done, info) step layout.
	Legacy bool
	// NestedObservation returns observations as a list of rows, which
	// cannot be read as a flat float sequence.
	NestedObservation bool
}

// Runtime is a fake core.Runtime. It counts external calls and records
// any call made while another one is in flight or outside Acquire.
type Runtime struct {
	mu    sync.Mutex
	specs map[string]Spec

	held     atomic.Int32
	inflight atomic.Int32
	overlaps atomic.Int32
	unheld   atomic.Int32
	calls    atomic.Int64
	live     atomic.Int64
}

func NewRuntime() *Runtime {
	return &Runtime{
		specs: make(map[string]Spec),
	}
}

// Register makes an environment available to gymnasium.make.
func (r *Runtime) Register(name string, spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[name] = spec
}

func (r *Runtime) spec(name string) (Spec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.specs[name]
	return s, ok
}

func (r *Runtime) Acquire() func() {
	r.held.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { r.held.Add(-1) })
	}
}

func (r *Runtime) Import(module string) (core.Object, error) {
	defer r.enter()()
	if module != "gymnasium" {
		return nil, fmt.Errorf("%w %q", ErrModuleNotFound, module)
	}
	return r.wrap(&gymModule{}), nil
}

// Calls is the number of external operations performed.
func (r *Runtime) Calls() int64 {
	return r.calls.Load()
}

// Overlaps is the number of operations that started while another
// operation was in flight.
func (r *Runtime) Overlaps() int {
	return int(r.overlaps.Load())
}

// Unheld is the number of operations performed outside Acquire.
func (r *Runtime) Unheld() int {
	return int(r.unheld.Load())
}

// Live is the number of handles created and not yet released.
func (r *Runtime) Live() int64 {
	return r.live.Load()
}

func (r *Runtime) enter() func() {
	r.calls.Add(1)
	if r.held.Load() <= 0 {
		r.unheld.Add(1)
	}
	if r.inflight.Add(1) > 1 {
		r.overlaps.Add(1)
	}
	// Widen the window for racing callers.
	runtime.Gosched()
	return func() {
		r.inflight.Add(-1)
	}
}

func (r *Runtime) wrap(v any) *object {
	r.live.Add(1)
	return &object{rt: r, v: v}
}

type gymModule struct{}

type space struct {
	n     int
	shape []int
}

type method func(args []any, kwargs map[string]any) (any, error)

type tuple []any

type fakeEnv struct {
	name   string
	spec   Spec
	t      int
	seed   uint64
	closed bool
}

func (r *Runtime) makeEnv(args []any, _ map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: make takes 1 positional argument, got %d", ErrType, len(args))
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: environment id must be a string, got %T", ErrType, args[0])
	}
	spec, ok := r.spec(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &fakeEnv{name: name, spec: spec}, nil
}

func (e *fakeEnv) actionSpace() *space {
	if e.spec.ActionN > 0 {
		return &space{n: e.spec.ActionN}
	}
	return &space{shape: e.spec.ActionShape}
}

func (e *fakeEnv) reset(args []any, kwargs map[string]any) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("%w: reset takes no positional arguments", ErrType)
	}
	if raw, ok := kwargs["seed"]; ok {
		switch seed := raw.(type) {
		case uint64:
			e.seed = seed
		case int64:
			e.seed = uint64(seed)
		default:
			return nil, fmt.Errorf("%w: seed must be an int, got %T", ErrType, raw)
		}
	}
	e.t = 0
	return tuple{e.observation(), map[string]any{}}, nil
}

func (e *fakeEnv) step(args []any, _ map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: step takes 1 positional argument, got %d", ErrType, len(args))
	}
	var reward float64
	switch a := args[0].(type) {
	case int64:
		if e.spec.ActionN <= 0 || a < 0 || int(a) >= e.spec.ActionN {
			return nil, fmt.Errorf("%w: %d", ErrInvalidAction, a)
		}
		reward = float64(a)
	case []float64:
		if len(e.spec.ActionShape) == 0 || len(a) != e.spec.ActionShape[0] {
			return nil, fmt.Errorf("%w: vector of length %d", ErrInvalidAction, len(a))
		}
		for _, x := range a {
			reward += x
		}
	default:
		return nil, fmt.Errorf("%w: unsupported action %T", ErrInvalidAction, args[0])
	}

	e.t++
	done := e.spec.EpisodeLength > 0 && e.t >= e.spec.EpisodeLength
	info := map[string]any{"t": e.t}
	if e.spec.Legacy {
		return tuple{e.observation(), reward, done, info}, nil
	}
	truncated := e.spec.TruncateAt > 0 && e.t >= e.spec.TruncateAt
	return tuple{e.observation(), reward, done, truncated, info}, nil
}

func (e *fakeEnv) close(_ []any, _ map[string]any) (any, error) {
	e.closed = true
	return nil, nil
}

// observation is a deterministic function of the seed and time step.
func (e *fakeEnv) observation() any {
	size := 1
	for _, d := range e.spec.ObservationShape {
		size *= d
	}
	obs := make([]float32, size)
	base := float32(e.seed%1000) + float32(e.t)
	for i := range obs {
		obs[i] = base + float32(i)/10
	}
	if e.spec.NestedObservation {
		return [][]float32{obs}
	}
	return obs
}
