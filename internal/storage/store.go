// Package storage persists run records so past runs can be listed and
// exported after the process exits. Two stores exist: an in-memory map
// and a sqlite database.
package storage

import (
	"context"
	"errors"

	"episkopos/internal/stats"
)

var errNotInitialized = errors.New("store is not initialized")

// Store is the run-history persistence contract. SaveRun upserts by
// run id; ListRuns returns newest-first, all records when limit <= 0.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, rec stats.RunRecord) error
	GetRun(ctx context.Context, runID string) (stats.RunRecord, bool, error)
	ListRuns(ctx context.Context, limit int) ([]stats.RunRecord, error)
}
