//go:build cluster

package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"episkopos/internal/table"
)

func newClusterBackend() (Backend, error) {
	return &Cluster{}, nil
}

// Cluster distributes repeats to worker subprocesses of this binary.
// Each task ships the config and derivation root over stdin; the
// worker replies with its repeat's rows on stdout. Semantics equal the
// parallel backend, only the transport differs.
type Cluster struct {
	// Command overrides the worker invocation, for tests.
	Command func(ctx context.Context) (*exec.Cmd, error)
}

func (*Cluster) Name() string { return "cluster" }

// Probe checks that the running binary can be re-invoked as a worker.
func (*Cluster) Probe(ctx context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("%w: resolve executable: %v", ErrUnavailable, err)
	}
	if _, err := os.Stat(exe); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Cluster) Run(ctx context.Context, job Job) (*table.Table, error) {
	if job.Config == nil {
		return nil, fmt.Errorf("cluster backend requires the run config in the job")
	}
	if err := c.Probe(ctx); err != nil {
		return nil, err
	}

	limit := job.Workers
	if limit < 1 {
		limit = runtime.NumCPU()
	}

	parts := make([][]table.Row, job.Repeats)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for r := 0; r < job.Repeats; r++ {
		g.Go(func() error {
			rows, err := c.runTask(ctx, Task{
				Repeat:    r,
				RootState: job.Root.State(),
				Config:    job.Config,
			})
			if err != nil {
				return fmt.Errorf("repeat %d: %w", r, err)
			}
			parts[r] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []table.Row
	for _, part := range parts {
		rows = append(rows, part...)
	}
	return table.New(rows), nil
}

func (c *Cluster) runTask(ctx context.Context, task Task) ([]table.Row, error) {
	cmd, err := c.command(ctx)
	if err != nil {
		return nil, err
	}

	var payload bytes.Buffer
	if err := WriteTask(&payload, task); err != nil {
		return nil, err
	}
	var out, stderr bytes.Buffer
	cmd.Stdin = &payload
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "no worker output"
		}
		return nil, fmt.Errorf("worker: %w: %s", err, msg)
	}
	res, err := ReadResult(&out)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

func (c *Cluster) command(ctx context.Context) (*exec.Cmd, error) {
	if c.Command != nil {
		return c.Command(ctx)
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: resolve executable: %v", ErrUnavailable, err)
	}
	return exec.CommandContext(ctx, exe, "worker"), nil
}
