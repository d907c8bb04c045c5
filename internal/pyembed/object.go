//go:build python

package pyembed

import (
	"fmt"

	python "github.com/DataDog/go-python3"

	"github.com/boristopalov/gymbridge/pkg/core"
)

// object owns one strong reference.
type object struct {
	o *python.PyObject
}

var _ core.Object = (*object)(nil)

func (o *object) ptr() (*python.PyObject, error) {
	if o.o == nil {
		return nil, ErrReleased
	}
	return o.o, nil
}

func (o *object) Attr(name string) (core.Object, error) {
	p, err := o.ptr()
	if err != nil {
		return nil, err
	}
	a := p.GetAttrString(name)
	if a == nil {
		return nil, fetchError()
	}
	return &object{o: a}, nil
}

func (o *object) HasAttr(name string) (bool, error) {
	p, err := o.ptr()
	if err != nil {
		return false, err
	}
	return p.HasAttrString(name), nil
}

func (o *object) Call(args []any, kwargs map[string]any) (core.Object, error) {
	p, err := o.ptr()
	if err != nil {
		return nil, err
	}
	return call(p, args, kwargs)
}

func call(fn *python.PyObject, args []any, kwargs map[string]any) (core.Object, error) {
	tuple, err := argsTuple(args)
	if err != nil {
		return nil, err
	}
	defer tuple.DecRef()

	dict, err := kwargsDict(kwargs)
	if err != nil {
		return nil, err
	}
	if dict != nil {
		defer dict.DecRef()
	}

	res := fn.Call(tuple, dict)
	if res == nil {
		return nil, fetchError()
	}
	return &object{o: res}, nil
}

func (o *object) CallMethod(name string, args []any, kwargs map[string]any) (core.Object, error) {
	p, err := o.ptr()
	if err != nil {
		return nil, err
	}
	fn := p.GetAttrString(name)
	if fn == nil {
		return nil, fetchError()
	}
	defer fn.DecRef()
	return call(fn, args, kwargs)
}

func (o *object) Item(i int) (core.Object, error) {
	p, err := o.ptr()
	if err != nil {
		return nil, err
	}
	it, err := item(p, i)
	if err != nil {
		return nil, err
	}
	return &object{o: it}, nil
}

func item(p *python.PyObject, i int) (*python.PyObject, error) {
	key := python.PyLong_FromGoInt(i)
	defer key.DecRef()
	it := p.GetItem(key)
	if it == nil {
		return nil, fetchError()
	}
	return it, nil
}

func (o *object) Len() (int, error) {
	p, err := o.ptr()
	if err != nil {
		return 0, err
	}
	n := p.Length()
	if n < 0 {
		return 0, fetchError()
	}
	return n, nil
}

func (o *object) Extract(dst any) error {
	p, err := o.ptr()
	if err != nil {
		return err
	}

	switch d := dst.(type) {
	case *int:
		n := python.PyLong_AsLong(p)
		if python.PyErr_Occurred() != nil {
			return fetchError()
		}
		*d = n
	case *float64:
		f := python.PyFloat_AsDouble(p)
		if python.PyErr_Occurred() != nil {
			return fetchError()
		}
		*d = f
	case *bool:
		b, err := asBool(p)
		if err != nil {
			return err
		}
		*d = b
	case *string:
		if !python.PyUnicode_Check(p) {
			return &PythonError{Type: "TypeError", Message: fmt.Sprintf("'%s' object cannot be converted to 'str'", typeName(p))}
		}
		*d = python.PyUnicode_AsUTF8(p)
	case *[]int:
		out, err := sequence(p, func(it *python.PyObject) (int, error) {
			n := python.PyLong_AsLong(it)
			if python.PyErr_Occurred() != nil {
				return 0, fetchError()
			}
			return n, nil
		})
		if err != nil {
			return err
		}
		*d = out
	case *[]float32:
		if err := requireFlat(p); err != nil {
			return err
		}
		out, err := sequence(p, func(it *python.PyObject) (float32, error) {
			f := python.PyFloat_AsDouble(it)
			if python.PyErr_Occurred() != nil {
				return 0, fetchError()
			}
			return float32(f), nil
		})
		if err != nil {
			return err
		}
		*d = out
	default:
		return fmt.Errorf("%w: destination %T", ErrUnsupported, dst)
	}
	return nil
}

func (o *object) Release() {
	if o.o == nil {
		return
	}
	o.o.DecRef()
	o.o = nil
}

func sequence[T any](p *python.PyObject, conv func(*python.PyObject) (T, error)) ([]T, error) {
	n := p.Length()
	if n < 0 {
		return nil, fetchError()
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		it, err := item(p, i)
		if err != nil {
			return nil, err
		}
		v, err := conv(it)
		it.DecRef()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// requireFlat rejects numpy arrays with more than one dimension.
func requireFlat(p *python.PyObject) error {
	if !p.HasAttrString("ndim") {
		return nil
	}
	ndim := p.GetAttrString("ndim")
	if ndim == nil {
		return fetchError()
	}
	defer ndim.DecRef()
	if n := python.PyLong_AsLong(ndim); n != 1 {
		return &PythonError{Type: "TypeError", Message: fmt.Sprintf("expected a flat sequence, got %d dimensions", n)}
	}
	return nil
}

func asBool(p *python.PyObject) (bool, error) {
	if python.PyBool_Check(p) {
		return p == python.Py_True, nil
	}
	if typeName(p) == "bool_" {
		return p.IsTrue() == 1, nil
	}
	return false, &PythonError{Type: "TypeError", Message: fmt.Sprintf("'%s' object cannot be converted to 'bool'", typeName(p))}
}

func typeName(p *python.PyObject) string {
	t := p.Type()
	if t == nil {
		return "?"
	}
	name := t.GetAttrString("__name__")
	if name == nil {
		python.PyErr_Clear()
		return "?"
	}
	defer name.DecRef()
	return python.PyUnicode_AsUTF8(name)
}
