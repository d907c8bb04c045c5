package environment_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/boristopalov/gymbridge/pkg/core"
	"github.com/boristopalov/gymbridge/pkg/environment"
	"github.com/boristopalov/gymbridge/pkg/environment/envtest"
)

func newRuntime() *envtest.Runtime {
	rt := envtest.NewRuntime()
	rt.Register("Discrete-v0", envtest.Spec{
		ActionN:          4,
		ObservationShape: []int{4},
		EpisodeLength:    3,
	})
	rt.Register("Box-v0", envtest.Spec{
		ActionShape:      []int{6},
		ObservationShape: []int{2, 3},
	})
	rt.Register("Truncating-v0", envtest.Spec{
		ActionN:          2,
		ObservationShape: []int{1},
		TruncateAt:       2,
	})
	rt.Register("NoActionShape-v0", envtest.Spec{
		ObservationShape: []int{3},
	})
	rt.Register("EmptyActionShape-v0", envtest.Spec{
		ActionShape:      []int{},
		ObservationShape: []int{3},
	})
	rt.Register("Nested-v0", envtest.Spec{
		ActionN:           2,
		ObservationShape:  []int{3},
		NestedObservation: true,
	})
	rt.Register("Empty-v0", envtest.Spec{
		ActionN:          2,
		ObservationShape: []int{0},
	})
	return rt
}

func TestMake(t *testing.T) {
	t.Run("discrete action count", func(t *testing.T) {
		rt := newRuntime()
		env, err := environment.Make[core.Discrete](rt, "Discrete-v0")
		require.NoError(t, err)
		t.Cleanup(func() { env.Close() })

		assert.Equal(t, 4, env.ActionSpace())
		assert.Equal(t, []int{4}, env.ObservationSpace())
		assert.Equal(t, "Discrete-v0", env.Name())
		assert.NotEmpty(t, env.ID())
	})

	t.Run("falls back to first shape element", func(t *testing.T) {
		rt := newRuntime()
		env, err := environment.Make[core.Continuous](rt, "Box-v0")
		require.NoError(t, err)
		t.Cleanup(func() { env.Close() })

		assert.Equal(t, 6, env.ActionSpace())
		assert.Equal(t, []int{2, 3}, env.ObservationSpace())
		assert.Equal(t, 6, env.ObservationSize())
	})

	t.Run("unknown environment", func(t *testing.T) {
		rt := newRuntime()
		env, err := environment.Make[core.Discrete](rt, "DoesNotExist-v9")
		require.Error(t, err)
		assert.Nil(t, env)

		var callErr *environment.ExternalCallError
		require.ErrorAs(t, err, &callErr)
		assert.Equal(t, "make", callErr.Op)
		assert.Equal(t, "DoesNotExist-v9", callErr.Env)
		assert.ErrorIs(t, err, envtest.ErrNotFound)
		assert.Zero(t, rt.Live())
	})

	t.Run("malformed action space", func(t *testing.T) {
		rt := newRuntime()
		_, err := environment.Make[core.Discrete](rt, "NoActionShape-v0")
		var callErr *environment.ExternalCallError
		require.ErrorAs(t, err, &callErr)
		assert.ErrorIs(t, err, envtest.ErrNoAttribute)
		assert.Zero(t, rt.Live(), "partially created environment must be released")
	})

	t.Run("empty action shape", func(t *testing.T) {
		rt := newRuntime()
		_, err := environment.Make[core.Continuous](rt, "EmptyActionShape-v0")
		assert.ErrorIs(t, err, environment.ErrEmptyShape)
	})
}

func TestReset(t *testing.T) {
	rt := newRuntime()
	env, err := environment.Make[core.Continuous](rt, "Box-v0")
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	for _, seed := range []uint64{0, 1, 42, 1 << 40} {
		obs, err := env.Reset(seed)
		require.NoError(t, err)
		assert.Equal(t, env.ObservationSize(), obs.Len(), "seed %d", seed)
		assert.InDelta(t, float64(seed%1000), obs.AtVec(0), 1e-6)
	}
}

func TestStep(t *testing.T) {
	t.Run("returns the action it was given", func(t *testing.T) {
		rt := newRuntime()
		env, err := environment.Make[core.Discrete](rt, "Discrete-v0")
		require.NoError(t, err)
		t.Cleanup(func() { env.Close() })

		_, err = env.Reset(7)
		require.NoError(t, err)

		for _, a := range []core.Discrete{3, 1} {
			step, err := env.Step(a)
			require.NoError(t, err)
			assert.Equal(t, a, step.Action)
			assert.Equal(t, float64(a), step.Reward)
			assert.Equal(t, 4, step.Observation.Len())
			assert.False(t, step.Truncated)
		}

		step, err := env.Step(0)
		require.NoError(t, err)
		assert.True(t, step.Done, "episode length is 3")
	})

	t.Run("continuous action is not aliased", func(t *testing.T) {
		rt := newRuntime()
		env, err := environment.Make[core.Continuous](rt, "Box-v0")
		require.NoError(t, err)
		t.Cleanup(func() { env.Close() })

		action := core.Continuous{1, 2, 3, 4, 5, 6}
		step, err := env.Step(action)
		require.NoError(t, err)
		assert.Equal(t, action, step.Action)
		assert.InDelta(t, 21.0, step.Reward, 1e-9)
		assert.Equal(t, 6, step.Observation.Len())
	})

	t.Run("truncation is reported", func(t *testing.T) {
		rt := newRuntime()
		env, err := environment.Make[core.Discrete](rt, "Truncating-v0")
		require.NoError(t, err)
		t.Cleanup(func() { env.Close() })

		first, err := env.Step(1)
		require.NoError(t, err)
		assert.False(t, first.Truncated)

		second, err := env.Step(1)
		require.NoError(t, err)
		assert.True(t, second.Truncated)
		assert.False(t, second.Done)
	})

	t.Run("invalid action", func(t *testing.T) {
		rt := newRuntime()
		env, err := environment.Make[core.Discrete](rt, "Discrete-v0")
		require.NoError(t, err)
		t.Cleanup(func() { env.Close() })

		_, err = env.Step(9)
		var callErr *environment.ExternalCallError
		require.ErrorAs(t, err, &callErr)
		assert.Equal(t, "step", callErr.Op)
		assert.ErrorIs(t, err, envtest.ErrInvalidAction)
	})

	t.Run("observation that is not a flat sequence", func(t *testing.T) {
		rt := newRuntime()
		env, err := environment.Make[core.Discrete](rt, "Nested-v0")
		require.NoError(t, err)
		t.Cleanup(func() { env.Close() })

		_, err = env.Reset(1)
		assert.ErrorIs(t, err, envtest.ErrType)

		_, err = env.Step(1)
		assert.ErrorIs(t, err, envtest.ErrType)
	})

	t.Run("zero length observation surfaces the tensor error", func(t *testing.T) {
		rt := newRuntime()
		env, err := environment.Make[core.Discrete](rt, "Empty-v0")
		require.NoError(t, err)
		t.Cleanup(func() { env.Close() })

		_, err = env.Reset(1)
		require.ErrorIs(t, err, mat.ErrZeroLength)
		var callErr *environment.ExternalCallError
		assert.False(t, errors.As(err, &callErr))
	})
}

func TestLegacyStepLayout(t *testing.T) {
	rt := envtest.NewRuntime()
	rt.Register("Legacy-v0", envtest.Spec{
		ActionN:          2,
		ObservationShape: []int{3},
		EpisodeLength:    1,
		Legacy:           true,
	})
	env, err := environment.Make[core.Discrete](rt, "Legacy-v0")
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	step, err := env.Step(1)
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.False(t, step.Truncated)
}

func TestMetadataIsCached(t *testing.T) {
	rt := newRuntime()
	env, err := environment.Make[core.Discrete](rt, "Discrete-v0")
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })

	calls := rt.Calls()
	shape := env.ObservationSpace()
	shape[0] = 99
	assert.Equal(t, 4, env.ActionSpace())
	assert.Equal(t, []int{4}, env.ObservationSpace())
	assert.Equal(t, calls, rt.Calls(), "metadata accessors must not call the runtime")

	for i := 0; i < 5; i++ {
		_, err := env.Reset(uint64(i))
		require.NoError(t, err)
		_, err = env.Step(core.Discrete(i % 4))
		require.NoError(t, err)
		assert.Equal(t, 4, env.ActionSpace())
		assert.Equal(t, []int{4}, env.ObservationSpace())
	}
}

func TestClose(t *testing.T) {
	rt := newRuntime()
	env, err := environment.Make[core.Discrete](rt, "Discrete-v0")
	require.NoError(t, err)

	require.NoError(t, env.Close())
	require.NoError(t, env.Close())
	assert.Zero(t, rt.Live())

	_, err = env.Reset(1)
	assert.ErrorIs(t, err, environment.ErrClosed)
	_, err = env.Step(1)
	assert.ErrorIs(t, err, environment.ErrClosed)
}

func TestConcurrentEnvironments(t *testing.T) {
	rt := newRuntime()
	discrete, err := environment.Make[core.Discrete](rt, "Discrete-v0")
	require.NoError(t, err)
	t.Cleanup(func() { discrete.Close() })
	box, err := environment.Make[core.Continuous](rt, "Box-v0")
	require.NoError(t, err)
	t.Cleanup(func() { box.Close() })

	const steps = 200
	var wg sync.WaitGroup
	errs := make(chan error, 2*steps)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < steps; i++ {
			if i%3 == 0 {
				if _, err := discrete.Reset(uint64(i)); err != nil {
					errs <- err
				}
			}
			step, err := discrete.Step(core.Discrete(i % 4))
			if err != nil {
				errs <- err
				continue
			}
			if step.Observation.Len() != discrete.ObservationSize() {
				errs <- errors.New("discrete observation has the wrong size")
			}
		}
	}()
	go func() {
		defer wg.Done()
		action := core.Continuous{0, 0, 0, 0, 0, 1}
		for i := 0; i < steps; i++ {
			step, err := box.Step(action)
			if err != nil {
				errs <- err
				continue
			}
			if step.Observation.Len() != box.ObservationSize() {
				errs <- errors.New("box observation has the wrong size")
			}
		}
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Zero(t, rt.Overlaps(), "external calls must never overlap")
	assert.Zero(t, rt.Unheld(), "external calls must run inside the runtime context")
	assert.Equal(t, 4, discrete.ActionSpace())
	assert.Equal(t, []int{4}, discrete.ObservationSpace())
	assert.Equal(t, 6, box.ActionSpace())
	assert.Equal(t, []int{2, 3}, box.ObservationSpace())
}
