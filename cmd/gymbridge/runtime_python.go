//go:build python

package main

import (
	"github.com/boristopalov/gymbridge/internal/pyembed"
	"github.com/boristopalov/gymbridge/pkg/core"
)

func init() {
	embeddedRuntime = func() (core.Runtime, error) {
		return pyembed.New()
	}
}
