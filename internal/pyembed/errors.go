// Package pyembed runs Gymnasium inside an embedded CPython interpreter.
// It is only compiled with the "python" build tag, which needs cgo and
// a python3 pkg-config entry.
package pyembed

import "errors"

var (
	ErrNotInitialized = errors.New("python interpreter not initialized")
	ErrReleased       = errors.New("object released")
	ErrUnsupported    = errors.New("unsupported value")
)

// PythonError is an exception fetched from the interpreter.
type PythonError struct {
	Type    string
	Message string
}

func (e *PythonError) Error() string {
	return e.Type + ": " + e.Message
}
