// Package pool runs a batch of tasks on a fixed number of parallel workers and
// returns their results in input order.
//
// The primary type is Dispatcher. Run takes an ordered slice of TaskSpec,
// spreads the tasks across the configured number of workers, blocks until
// every worker has stopped, and returns one Result per task: Result i always
// belongs to task i, whatever order the tasks finished in.
//
// # Basic Usage
//
//	d := pool.New(pool.WithWidth(4))
//	specs := []pool.TaskSpec{
//	    {Func: square, Args: pool.NewArgs("n", 2)},
//	    {Func: square, Args: pool.NewArgs("n", 3)},
//	}
//	results, err := d.Run(ctx, specs)
//
// A width of 1 or less runs every task inline on the calling goroutine, in
// submission order.
//
// # Task Kinds
//
// Instead of carrying a func, a TaskSpec may name a kind registered in a
// Registry. Kinds are resolved by the dispatcher before any worker starts:
//
//	reg := pool.NewRegistry()
//	reg.MustRegister("square", square)
//	d := pool.New(pool.WithRegistry(reg), pool.WithDefaultKind("square"))
//	results, err := d.Run(ctx, pool.Tasks("square", pool.NewArgs("n", 2)))
//
// A task whose callable cannot be resolved makes Run fail with a
// *ConfigError before any work starts. No other error is returned for task
// failures.
//
// # Failure Policies
//
// The failure policy applies to every task of a call:
//
//   - Abort: the worker that ran the failing task stops. Other workers keep
//     draining the queue. The slot is marked StatusAborted.
//   - Skip: the failure is logged and the worker moves on. The slot is
//     marked StatusSkipped.
//
// Either way the slot carries a *TaskError naming the index and the cause,
// and Run still returns a full-length slice. Slots that never ran stay
// StatusPending.
//
// # Parameter Grids
//
// Grid expands named axes into the cartesian product of their values, with
// the first axis varying fastest:
//
//	args := pool.Grid(
//	    pool.Axis{Name: "a", Values: []any{1, 2}},
//	    pool.Axis{Name: "b", Values: []any{10, 20}},
//	)
//	// a=1,b=10  a=2,b=10  a=1,b=20  a=2,b=20
//
// # Hooks, Rate Limiting, Metrics
//
// WithBeforeTaskStart and WithOnTaskEnd observe every task from the worker
// that runs it. WithRateLimit caps how fast tasks start across the whole
// pool. WithMetrics records Prometheus counters for runs, workers and tasks.
//
// # Thread Safety
//
// A Dispatcher holds no per-run state, so Run may be called concurrently.
// Hooks and task funcs are called from worker goroutines and must be safe
// for concurrent use when width > 1.
package pool
