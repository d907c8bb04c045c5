package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/boristopalov/gymbridge/internal/client"
	"github.com/boristopalov/gymbridge/pkg/config"
	"github.com/boristopalov/gymbridge/pkg/core"
)

// embeddedRuntime is set by runtime_python.go when built with -tags python.
var embeddedRuntime func() (core.Runtime, error)

var errNoEmbedded = errors.New("embedded runtime unavailable: rebuild with -tags python")

// openRuntime returns the configured runtime and a function releasing it.
func openRuntime(ctx context.Context, cfg config.RuntimeConfig) (core.Runtime, func() error, error) {
	switch cfg.Type {
	case config.RuntimeEmbedded:
		if embeddedRuntime == nil {
			return nil, nil, errNoEmbedded
		}
		rt, err := embeddedRuntime()
		if err != nil {
			return nil, nil, err
		}
		// the interpreter lives for the whole process
		return rt, func() error { return nil }, nil
	case config.RuntimeBridge, "":
		var opts []client.BridgeOption
		if cfg.Python != "" {
			opts = append(opts, client.WithPython(cfg.Python))
		}
		b, err := client.Start(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start python worker: %w", err)
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown runtime %q", cfg.Type)
	}
}
