package envtest

import (
	"fmt"

	"github.com/boristopalov/gymbridge/pkg/core"
)

type object struct {
	rt       *Runtime
	v        any
	released bool
}

var _ core.Object = (*object)(nil)

func (o *object) attr(name string) (any, error) {
	switch v := o.v.(type) {
	case *gymModule:
		if name == "make" {
			return method(o.rt.makeEnv), nil
		}
	case *space:
		switch {
		case name == "n" && v.n > 0:
			return v.n, nil
		case name == "shape" && v.n > 0:
			return tuple{}, nil
		case name == "shape" && v.shape != nil:
			shape := make(tuple, len(v.shape))
			for i, d := range v.shape {
				shape[i] = d
			}
			return shape, nil
		}
	case *fakeEnv:
		switch name {
		case "action_space":
			return v.actionSpace(), nil
		case "observation_space":
			return &space{shape: v.spec.ObservationShape}, nil
		case "reset":
			return method(v.reset), nil
		case "step":
			return method(v.step), nil
		case "close":
			return method(v.close), nil
		}
	}
	return nil, fmt.Errorf("%w: %T has no attribute %q", ErrNoAttribute, o.v, name)
}

func (o *object) Attr(name string) (core.Object, error) {
	defer o.rt.enter()()
	if o.released {
		return nil, ErrReleased
	}
	v, err := o.attr(name)
	if err != nil {
		return nil, err
	}
	return o.rt.wrap(v), nil
}

func (o *object) HasAttr(name string) (bool, error) {
	defer o.rt.enter()()
	if o.released {
		return false, ErrReleased
	}
	_, err := o.attr(name)
	return err == nil, nil
}

func (o *object) Call(args []any, kwargs map[string]any) (core.Object, error) {
	defer o.rt.enter()()
	return o.call(args, kwargs)
}

func (o *object) call(args []any, kwargs map[string]any) (core.Object, error) {
	if o.released {
		return nil, ErrReleased
	}
	fn, ok := o.v.(method)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not callable", ErrType, o.v)
	}
	res, err := fn(args, kwargs)
	if err != nil {
		return nil, err
	}
	return o.rt.wrap(res), nil
}

func (o *object) CallMethod(name string, args []any, kwargs map[string]any) (core.Object, error) {
	defer o.rt.enter()()
	if o.released {
		return nil, ErrReleased
	}
	v, err := o.attr(name)
	if err != nil {
		return nil, err
	}
	m := &object{rt: o.rt, v: v}
	return m.call(args, kwargs)
}

func (o *object) Item(i int) (core.Object, error) {
	defer o.rt.enter()()
	if o.released {
		return nil, ErrReleased
	}
	switch v := o.v.(type) {
	case tuple:
		if i < 0 || i >= len(v) {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndex, i, len(v))
		}
		return o.rt.wrap(v[i]), nil
	case []float32:
		if i < 0 || i >= len(v) {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndex, i, len(v))
		}
		return o.rt.wrap(float64(v[i])), nil
	}
	return nil, fmt.Errorf("%w: %T is not subscriptable", ErrType, o.v)
}

func (o *object) Len() (int, error) {
	defer o.rt.enter()()
	if o.released {
		return 0, ErrReleased
	}
	switch v := o.v.(type) {
	case tuple:
		return len(v), nil
	case []float32:
		return len(v), nil
	case [][]float32:
		return len(v), nil
	}
	return 0, fmt.Errorf("%w: %T has no len()", ErrType, o.v)
}

func (o *object) Extract(dst any) error {
	defer o.rt.enter()()
	if o.released {
		return ErrReleased
	}
	mismatch := fmt.Errorf("%w: cannot extract %T into %T", ErrType, o.v, dst)

	switch d := dst.(type) {
	case *int:
		v, ok := o.v.(int)
		if !ok {
			return mismatch
		}
		*d = v
	case *float64:
		switch v := o.v.(type) {
		case float64:
			*d = v
		case int:
			*d = float64(v)
		default:
			return mismatch
		}
	case *bool:
		v, ok := o.v.(bool)
		if !ok {
			return mismatch
		}
		*d = v
	case *string:
		v, ok := o.v.(string)
		if !ok {
			return mismatch
		}
		*d = v
	case *[]int:
		t, ok := o.v.(tuple)
		if !ok {
			return mismatch
		}
		out := make([]int, len(t))
		for i, x := range t {
			n, ok := x.(int)
			if !ok {
				return mismatch
			}
			out[i] = n
		}
		*d = out
	case *[]float32:
		v, ok := o.v.([]float32)
		if !ok {
			return mismatch
		}
		out := make([]float32, len(v))
		copy(out, v)
		*d = out
	default:
		return fmt.Errorf("%w: unsupported destination %T", ErrType, dst)
	}
	return nil
}

func (o *object) Release() {
	if o.released {
		return
	}
	o.released = true
	o.rt.live.Add(-1)
}
