// Package benchmarks measures dispatcher throughput and latency across
// widths, failure policies and workloads.
package benchmarks

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/utkarsh5026/batchrun/pool"
)

// dispatcherConfig is one named dispatcher setup to benchmark.
type dispatcherConfig struct {
	name string
	opts []pool.Option
}

// getWidthConfigs returns one configuration per width.
func getWidthConfigs(widths ...int) []dispatcherConfig {
	configs := make([]dispatcherConfig, len(widths))
	for i, w := range widths {
		configs[i] = dispatcherConfig{
			name: fmt.Sprintf("width_%d", w),
			opts: []pool.Option{pool.WithWidth(w)},
		}
	}
	return configs
}

// getPolicyConfigs returns Abort and Skip setups at the given width.
func getPolicyConfigs(width int) []dispatcherConfig {
	return []dispatcherConfig{
		{
			name: "Abort",
			opts: []pool.Option{pool.WithWidth(width), pool.WithFailurePolicy(pool.Abort)},
		},
		{
			name: "Skip",
			opts: []pool.Option{pool.WithWidth(width), pool.WithFailurePolicy(pool.Skip)},
		},
	}
}

// numberedTasks builds n specs running fn with "n" set to the task index.
func numberedTasks(n int, fn pool.TaskFunc) []pool.TaskSpec {
	specs := make([]pool.TaskSpec, n)
	for i := range specs {
		specs[i] = pool.TaskSpec{Func: fn, Args: pool.NewArgs("n", i)}
	}
	return specs
}

// cpuBoundWork simulates a CPU-intensive operation
func cpuBoundWork(iterations int) pool.TaskFunc {
	return func(ctx context.Context, args pool.Args) (any, error) {
		task, _ := args.GetInt("n")
		result := 0
		for i := range iterations {
			result += i * task
		}
		return result, nil
	}
}

// ioBoundWork simulates an I/O operation with a delay
func ioBoundWork(delay time.Duration) pool.TaskFunc {
	return func(ctx context.Context, args pool.Args) (any, error) {
		task, _ := args.GetInt("n")
		select {
		case <-time.After(delay):
			return task * 2, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// failingWork fails every task whose index is a multiple of every
func failingWork(every int) pool.TaskFunc {
	return func(ctx context.Context, args pool.Args) (any, error) {
		task, _ := args.GetInt("n")
		if task%every == 0 {
			return nil, fmt.Errorf("simulated error for task %d", task)
		}
		return task * 2, nil
	}
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	index := int(math.Ceil(float64(len(sorted)) * p))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
