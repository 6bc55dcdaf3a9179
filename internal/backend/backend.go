// Package backend schedules a run's repeats. Every backend drives the
// same per-repeat routine and must return a table identical to the
// sequential one once sorted by (repeat, round).
package backend

import (
	"context"
	"errors"

	"episkopos/internal/config"
	"episkopos/internal/stream"
	"episkopos/internal/table"
)

var (
	// ErrUnknown marks a backend name no factory is registered for.
	ErrUnknown = errors.New("unknown backend")
	// ErrUnavailable marks a backend whose runtime support is missing
	// in this build or environment.
	ErrUnavailable = errors.New("backend unavailable")
)

// Job is one run's worth of repeats. RunRepeat must be safe for
// concurrent calls with distinct repeat indices; Config and Root are
// only needed by backends that rebuild the executor elsewhere.
type Job struct {
	Repeats   int
	Workers   int
	RunRepeat func(ctx context.Context, repeat int) ([]table.Row, error)
	Config    *config.Config
	Root      stream.Root
}

type Backend interface {
	Name() string
	Run(ctx context.Context, job Job) (*table.Table, error)
}

// Prober is implemented by backends that need a capability check
// before use. Backends without it are assumed available.
type Prober interface {
	Probe(ctx context.Context) error
}
