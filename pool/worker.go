package pool

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/batchrun/internal/cpu"
)

// spawned runs a worker on its own goroutine, pinned to a CPU when the
// dispatcher is configured for it.
func (d *Dispatcher) spawned(ctx context.Context, id int, r *run) error {
	if d.conf.pinWorkers {
		release, err := cpu.Pin(id)
		if err != nil {
			r.log.Debug("worker not pinned", zap.Int("worker", id), zap.Error(err))
		}
		defer release()
	}
	return d.work(ctx, id, r)
}

// work is the worker loop. It pulls task records until the task queue is
// empty, ctx is done, or, under Abort, a task fails.
//
// Every task the worker takes produces exactly one record, either on the
// result queue or on the failure queue. Under Abort the failing task's error
// is also returned, which ends this worker only.
func (d *Dispatcher) work(ctx context.Context, id int, r *run) error {
	d.conf.metrics.WorkerStarted()
	defer d.conf.metrics.WorkerStopped()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rec, ok := r.tasks.TryDequeue()
		if !ok {
			debugLog("worker %d: task queue empty, exiting", id)
			return nil
		}

		if err := d.throttle(ctx); err != nil {
			// The task was taken but never started; its slot stays pending.
			return err
		}

		if err := d.execute(ctx, id, rec, r); err != nil {
			return err
		}
	}
}

// throttle blocks until the rate limiter lets the next task start.
// Unlike rate.Limiter.Wait it never fails early on a deadline that is still
// in the future, so the only error is ctx's own.
func (d *Dispatcher) throttle(ctx context.Context) error {
	if d.conf.rateLimiter == nil {
		return nil
	}

	res := d.conf.rateLimiter.Reserve()
	delay := res.Delay()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	}
}

// execute runs one task and records its outcome. It returns a non-nil error
// only when the task failed under the Abort policy.
func (d *Dispatcher) execute(ctx context.Context, id int, rec *taskRecord, r *run) error {
	info := TaskInfo{Index: rec.index, Kind: rec.kind, Args: rec.args, Worker: id}
	if d.conf.beforeTaskStart != nil {
		d.conf.beforeTaskStart(info)
	}

	start := time.Now()
	value, err := callWithRecovery(ctx, rec.fn, rec.args)
	took := time.Since(start)

	if d.conf.onTaskEnd != nil {
		d.conf.onTaskEnd(info, value, err)
	}

	if err == nil {
		d.conf.metrics.TaskFinished(rec.kind, StatusOK.String(), took)
		// The queue is sized to the run, so it cannot be full.
		_ = r.results.Enqueue(resultRecord{index: rec.index, value: value, worker: id, took: took})
		return nil
	}

	taskErr := &TaskError{Index: rec.index, Kind: rec.kind, Err: err}
	aborted := d.conf.policy == Abort
	status := StatusSkipped
	if aborted {
		status = StatusAborted
	}
	d.conf.metrics.TaskFinished(rec.kind, status.String(), took)
	_ = r.failures.Enqueue(failureRecord{index: rec.index, worker: id, took: took, aborted: aborted, err: taskErr})

	fields := []zap.Field{
		zap.Int("index", rec.index),
		zap.String("kind", rec.kind),
		zap.Int("worker", id),
		zap.Error(err),
	}
	if !aborted {
		r.log.Warn("task failed, skipping", fields...)
		return nil
	}

	r.log.Error("task failed, worker stopping", fields...)
	return taskErr
}

// callWithRecovery calls fn and converts a panic into a *PanicError so a
// single task cannot bring down the dispatcher.
func callWithRecovery(ctx context.Context, fn TaskFunc, args Args) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			value = nil
			err = &PanicError{Value: p, Stack: buf[:n]}
		}
	}()

	return fn(ctx, args)
}
