package client

import "errors"

var (
	ErrClosed           = errors.New("bridge closed")
	ErrReleased         = errors.New("object released")
	ErrWorkerGone       = errors.New("worker unavailable")
	ErrProtocol         = errors.New("protocol error")
	ErrUnsupportedValue = errors.New("unsupported value")
)

// PythonError is an exception raised inside the worker.
type PythonError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *PythonError) Error() string {
	return e.Type + ": " + e.Message
}
