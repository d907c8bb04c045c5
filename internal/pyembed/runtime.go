//go:build python

package pyembed

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	python "github.com/DataDog/go-python3"

	"github.com/boristopalov/gymbridge/pkg/core"
)

var (
	initOnce sync.Once
	initErr  error
)

// Runtime is a core.Runtime over the process's embedded interpreter.
// There is only one interpreter per process; every Runtime shares it.
type Runtime struct{}

// New initializes the interpreter on first use and releases the GIL so
// Acquire can take it from any thread.
func New() (*Runtime, error) {
	initOnce.Do(func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		python.Py_Initialize()
		if !python.Py_IsInitialized() {
			initErr = ErrNotInitialized
			return
		}
		python.PyEval_SaveThread()
		log.Println("Initialized embedded Python interpreter")
	})
	if initErr != nil {
		return nil, initErr
	}
	return &Runtime{}, nil
}

// Acquire pins the goroutine to its OS thread and takes the GIL.
func (r *Runtime) Acquire() func() {
	runtime.LockOSThread()
	state := python.PyGILState_Ensure()
	return func() {
		python.PyGILState_Release(state)
		runtime.UnlockOSThread()
	}
}

func (r *Runtime) Import(module string) (core.Object, error) {
	m := python.PyImport_ImportModule(module)
	if m == nil {
		return nil, fetchError()
	}
	return &object{o: m}, nil
}

// fetchError clears the pending exception and returns it as an error.
func fetchError() error {
	if python.PyErr_Occurred() == nil {
		return &PythonError{Type: "SystemError", Message: "call failed without setting an exception"}
	}
	ptype, pvalue, ptraceback := python.PyErr_Fetch()
	defer func() {
		for _, o := range []*python.PyObject{ptype, pvalue, ptraceback} {
			if o != nil {
				o.DecRef()
			}
		}
	}()

	e := &PythonError{Type: "Exception"}
	if ptype != nil {
		if name := ptype.GetAttrString("__name__"); name != nil {
			e.Type = python.PyUnicode_AsUTF8(name)
			name.DecRef()
		}
	}
	if pvalue != nil {
		if s := pvalue.Str(); s != nil {
			e.Message = python.PyUnicode_AsUTF8(s)
			s.DecRef()
		}
	}
	return e
}

// toPython converts a plain marshal value into a new reference.
func toPython(v any) (*python.PyObject, error) {
	switch x := v.(type) {
	case int64:
		return python.PyLong_FromGoInt64(x), nil
	case uint64:
		return python.PyLong_FromGoUint64(x), nil
	case int:
		return python.PyLong_FromGoInt(x), nil
	case float64:
		return python.PyFloat_FromDouble(x), nil
	case bool:
		if x {
			return python.PyBool_FromLong(1), nil
		}
		return python.PyBool_FromLong(0), nil
	case string:
		return python.PyUnicode_FromString(x), nil
	case []int64:
		list := python.PyList_New(len(x))
		for i, n := range x {
			python.PyList_SetItem(list, i, python.PyLong_FromGoInt64(n))
		}
		return list, nil
	case []float64:
		list := python.PyList_New(len(x))
		for i, f := range x {
			python.PyList_SetItem(list, i, python.PyFloat_FromDouble(f))
		}
		return list, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, v)
}

func argsTuple(args []any) (*python.PyObject, error) {
	tuple := python.PyTuple_New(len(args))
	for i, a := range args {
		item, err := toPython(a)
		if err != nil {
			tuple.DecRef()
			return nil, err
		}
		python.PyTuple_SetItem(tuple, i, item)
	}
	return tuple, nil
}

func kwargsDict(kwargs map[string]any) (*python.PyObject, error) {
	if len(kwargs) == 0 {
		return nil, nil
	}
	dict := python.PyDict_New()
	for k, v := range kwargs {
		item, err := toPython(v)
		if err != nil {
			dict.DecRef()
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		python.PyDict_SetItemString(dict, k, item)
		item.DecRef()
	}
	return dict, nil
}
