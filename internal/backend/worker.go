package backend

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"episkopos/internal/config"
	"episkopos/internal/table"
)

// Task is one repeat shipped to a worker process: the full config plus
// the derivation root state, so the worker rebuilds the exact streams.
// YAML is used on both legs because row metrics can hold NaN, which
// YAML round-trips and JSON rejects.
type Task struct {
	Repeat    int            `yaml:"repeat"`
	RootState uint64         `yaml:"root_state"`
	Config    *config.Config `yaml:"config"`
}

// TaskResult carries one repeat's rows back to the coordinator.
type TaskResult struct {
	Rows []table.Row `yaml:"rows"`
}

// ReadTask decodes a task from a worker's stdin.
func ReadTask(r io.Reader) (Task, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Task{}, fmt.Errorf("read task: %w", err)
	}
	var task Task
	if err := yaml.Unmarshal(data, &task); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if task.Config == nil {
		return Task{}, fmt.Errorf("decode task: missing config")
	}
	return task, nil
}

// WriteTask encodes a task for a worker's stdin.
func WriteTask(w io.Writer, task Task) error {
	data, err := yaml.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ReadResult decodes a worker's reply.
func ReadResult(r io.Reader) (TaskResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return TaskResult{}, fmt.Errorf("read result: %w", err)
	}
	var res TaskResult
	if err := yaml.Unmarshal(data, &res); err != nil {
		return TaskResult{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

// WriteResult encodes a worker's reply to stdout.
func WriteResult(w io.Writer, res TaskResult) error {
	data, err := yaml.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = w.Write(data)
	return err
}
