package backend

import (
	"context"
	"fmt"
	"sync"

	"episkopos/internal/table"
)

// Parallel fans repeats out to a bounded pool of goroutines. Repeats
// share no state, so the only ordering work is the final sort. Worker
// counts of one or less degrade to the sequential backend, which keeps
// the degenerate case bit-identical by construction.
type Parallel struct{}

func (Parallel) Name() string { return "parallel" }

func (Parallel) Run(ctx context.Context, job Job) (*table.Table, error) {
	if job.Workers <= 1 {
		return Sequential{}.Run(ctx, job)
	}

	type task struct {
		repeat int
	}
	type result struct {
		repeat int
		rows   []table.Row
		err    error
	}

	tasks := make(chan task)
	results := make(chan result, job.Repeats)

	workerCount := job.Workers
	if workerCount > job.Repeats {
		workerCount = job.Repeats
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for tk := range tasks {
				if err := ctx.Err(); err != nil {
					results <- result{repeat: tk.repeat, err: err}
					continue
				}
				rows, err := job.RunRepeat(ctx, tk.repeat)
				if err != nil {
					results <- result{repeat: tk.repeat, err: err}
					continue
				}
				results <- result{repeat: tk.repeat, rows: rows}
			}
		}()
	}

	for r := 0; r < job.Repeats; r++ {
		tasks <- task{repeat: r}
	}
	close(tasks)

	wg.Wait()
	close(results)

	parts := make([][]table.Row, job.Repeats)
	for res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("repeat %d: %w", res.repeat, res.err)
		}
		parts[res.repeat] = res.rows
	}

	var rows []table.Row
	for _, part := range parts {
		rows = append(rows, part...)
	}
	return table.New(rows), nil
}
