package environment

import (
	"errors"
	"fmt"
)

var (
	ErrClosed     = errors.New("environment closed")
	ErrEmptyShape = errors.New("space shape is empty")
)

// ExternalCallError wraps a failure raised by the external runtime.
type ExternalCallError struct {
	Op  string
	Env string
	Err error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s %s: external call failed: %v", e.Op, e.Env, e.Err)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}
