package pool

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/batchrun/internal/queue"
)

// Dispatcher runs batches of tasks on a fixed number of parallel workers and
// hands back results in input order. A Dispatcher holds no per-run state and
// may be used for any number of concurrent Run calls.
type Dispatcher struct {
	conf *config
}

// New creates a Dispatcher with the given options.
//
// Default configuration:
//   - width: runtime.GOMAXPROCS(0)
//   - policy: Abort
//   - registry: DefaultRegistry
//   - logger: zap.NewNop()
//
// Example:
//
//	d := pool.New(
//	    pool.WithWidth(8),
//	    pool.WithFailurePolicy(pool.Skip),
//	    pool.WithDefaultFunc(fetch),
//	)
func New(opts ...Option) *Dispatcher {
	return &Dispatcher{conf: newConfig(opts...)}
}

// Width returns the configured number of workers.
func (d *Dispatcher) Width() int {
	return d.conf.width
}

// Policy returns the configured failure policy.
func (d *Dispatcher) Policy() FailurePolicy {
	return d.conf.policy
}

// Run executes a one-shot dispatcher: the functional form of
// New(WithWidth(width), WithDefaultFunc(fn), WithFailurePolicy(policy)).Run.
func Run(ctx context.Context, specs []TaskSpec, width int, fn TaskFunc, policy FailurePolicy) ([]Result, error) {
	return New(WithWidth(width), WithDefaultFunc(fn), WithFailurePolicy(policy)).Run(ctx, specs)
}

// taskRecord is one unit of work on the task queue. It is built once by the
// dispatcher and read by exactly one worker.
type taskRecord struct {
	index int
	kind  string
	fn    TaskFunc
	args  Args
}

// resultRecord carries a successful return value back to the dispatcher.
type resultRecord struct {
	index  int
	value  any
	worker int
	took   time.Duration
}

// failureRecord carries a task failure back to the dispatcher.
type failureRecord struct {
	index   int
	worker  int
	took    time.Duration
	aborted bool
	err     *TaskError
}

// run holds the queues shared between the dispatcher and the workers of a
// single Run call.
type run struct {
	id       string
	log      *zap.Logger
	tasks    *queue.MPMC[*taskRecord]
	results  *queue.MPMC[resultRecord]
	failures *queue.MPMC[failureRecord]
}

// Run executes specs and blocks until every worker has stopped.
//
// The returned slice always has len(specs) entries and entry i always
// belongs to specs[i]. Task failures never surface as the error: they are
// recorded in their slot according to the failure policy. The error is
// non-nil only when a task has no resolvable callable (a *ConfigError,
// returned before any work starts) or when ctx is cancelled (ctx.Err(), in
// which case tasks not yet started stay StatusPending).
//
// Parameters:
//   - ctx: passed to every task; once done, workers stop pulling new tasks
//   - specs: the tasks, in the order results are wanted
func (d *Dispatcher) Run(ctx context.Context, specs []TaskSpec) ([]Result, error) {
	if len(specs) == 0 {
		return []Result{}, nil
	}

	records, err := d.resolve(specs)
	if err != nil {
		return nil, err
	}

	r, err := d.prepare(records)
	if err != nil {
		return nil, err
	}

	r.log.Debug("run started",
		zap.Int("tasks", len(records)),
		zap.Int("width", d.conf.width),
		zap.Stringer("policy", d.conf.policy))
	d.conf.metrics.RunStarted(len(records))

	start := time.Now()
	if d.conf.width <= 1 {
		if err := d.work(ctx, 0, r); err != nil {
			r.log.Debug("inline run stopped early", zap.Error(err))
		}
	} else {
		var g errgroup.Group
		for i := range d.conf.width {
			g.Go(func() error {
				return d.spawned(ctx, i, r)
			})
		}
		// Wait returns the first abort; the others are already in the
		// failure queue and the remaining workers were never cancelled.
		if err := g.Wait(); err != nil {
			r.log.Debug("at least one worker aborted", zap.Error(err))
		}
	}

	results := collate(records, r)

	summary := Summarize(results)
	r.log.Info("run finished",
		zap.Int("total", summary.Total),
		zap.Int("ok", summary.OK),
		zap.Int("skipped", summary.Skipped),
		zap.Int("aborted", summary.Aborted),
		zap.Int("pending", summary.Pending),
		zap.Duration("duration", time.Since(start)))

	return results, ctx.Err()
}

// resolve gives every spec a callable, or fails on the first one that has none.
func (d *Dispatcher) resolve(specs []TaskSpec) ([]*taskRecord, error) {
	records := make([]*taskRecord, len(specs))

	for i, spec := range specs {
		kind, fn, err := d.callableFor(spec)
		if err != nil {
			return nil, &ConfigError{Index: i, Kind: kind, Err: err}
		}
		records[i] = &taskRecord{
			index: i,
			kind:  kind,
			fn:    fn,
			args:  slices.Clone(spec.Args),
		}
	}

	return records, nil
}

func (d *Dispatcher) callableFor(spec TaskSpec) (string, TaskFunc, error) {
	switch {
	case spec.Func != nil:
		kind := spec.Kind
		if kind == "" {
			kind = "func"
		}
		return kind, spec.Func, nil

	case spec.Kind != "":
		fn, err := d.conf.registry.Lookup(spec.Kind)
		return spec.Kind, fn, err

	case d.conf.defaultKind != "":
		fn, err := d.conf.registry.Lookup(d.conf.defaultKind)
		return d.conf.defaultKind, fn, err

	case d.conf.defaultFunc != nil:
		return "func", d.conf.defaultFunc, nil

	default:
		return "", nil, ErrNoCallable
	}
}

// prepare builds the run's queues and fills the task queue completely, so no
// worker can observe a half-populated queue and exit early.
func (d *Dispatcher) prepare(records []*taskRecord) (*run, error) {
	n := len(records)
	id := uuid.NewString()

	r := &run{
		id:       id,
		log:      d.conf.logger.With(zap.String("run_id", id)),
		tasks:    queue.New[*taskRecord](n),
		results:  queue.New[resultRecord](n),
		failures: queue.New[failureRecord](n),
	}

	for _, rec := range records {
		if err := r.tasks.Enqueue(rec); err != nil {
			return nil, fmt.Errorf("enqueue task %d: %w", rec.index, err)
		}
	}
	r.tasks.Close()
	debugLog("run %s: queued %d tasks (cap %d)", id, n, r.tasks.Cap())

	return r, nil
}

// collate builds the output array from the drained result and failure queues.
// It runs only after every worker has stopped, so it is the sole writer.
func collate(records []*taskRecord, r *run) []Result {
	out := make([]Result, len(records))
	for i, rec := range records {
		out[i] = Result{Index: i, Kind: rec.kind, Status: StatusPending, Worker: -1}
	}

	for _, res := range r.results.Drain() {
		slot := &out[res.index]
		if slot.Status != StatusPending {
			r.log.DPanic("result slot written twice", zap.Int("index", res.index))
			continue
		}
		slot.Value = res.value
		slot.Status = StatusOK
		slot.Worker = res.worker
		slot.Duration = res.took
	}

	for _, f := range r.failures.Drain() {
		slot := &out[f.index]
		if slot.Status != StatusPending {
			r.log.DPanic("result slot written twice", zap.Int("index", f.index))
			continue
		}
		slot.Status = StatusSkipped
		if f.aborted {
			slot.Status = StatusAborted
		}
		slot.Err = f.err
		slot.Worker = f.worker
		slot.Duration = f.took
	}

	return out
}
