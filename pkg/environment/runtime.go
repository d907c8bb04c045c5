package environment

import (
	"sync"

	"github.com/boristopalov/gymbridge/pkg/core"
)

// runtimeMu serializes every external call in the process, across all
// environments and runtimes.
var runtimeMu sync.Mutex

// WithRuntime runs fn while holding the process-wide runtime lock and
// the runtime's own interpreter context. Code outside this package that
// touches a runtime directly must go through it as well.
func WithRuntime(rt core.Runtime, fn func() error) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	release := rt.Acquire()
	defer release()

	return fn()
}
