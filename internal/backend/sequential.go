package backend

import (
	"context"
	"fmt"

	"episkopos/internal/table"
)

// Sequential runs repeats in index order on the calling goroutine. It
// is the reference every other backend is checked against.
type Sequential struct{}

func (Sequential) Name() string { return "sequential" }

func (Sequential) Run(ctx context.Context, job Job) (*table.Table, error) {
	var rows []table.Row
	for r := 0; r < job.Repeats; r++ {
		part, err := job.RunRepeat(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("repeat %d: %w", r, err)
		}
		rows = append(rows, part...)
	}
	return table.New(rows), nil
}
