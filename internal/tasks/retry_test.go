package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/utkarsh5026/batchrun/pool"
)

func flaky(failures int32, calls *atomic.Int32) pool.TaskFunc {
	return func(context.Context, pool.Args) (any, error) {
		if n := calls.Add(1); n <= failures {
			return nil, errors.New("temporary error")
		}
		return "success", nil
	}
}

func TestRetrying_SucceedsWithinBudget(t *testing.T) {
	var calls atomic.Int32
	fn := Retrying(flaky(2, &calls), 3, time.Millisecond)

	v, err := fn(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "success" {
		t.Errorf("expected success, got %v", v)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestRetrying_GivesUp(t *testing.T) {
	var calls atomic.Int32
	fn := Retrying(flaky(5, &calls), 2, time.Millisecond)

	if _, err := fn(context.Background(), nil); err == nil {
		t.Fatal("expected an error")
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestRetrying_PermanentStops(t *testing.T) {
	var calls atomic.Int32
	fn := Retrying(func(context.Context, pool.Args) (any, error) {
		calls.Add(1)
		return nil, backoff.Permanent(errors.New("bad config"))
	}, 5, time.Millisecond)

	if _, err := fn(context.Background(), nil); err == nil {
		t.Fatal("expected an error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestRetrying_ZeroTriesRunsOnce(t *testing.T) {
	var calls atomic.Int32
	fn := Retrying(flaky(0, &calls), 0, 0)

	if _, err := fn(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", calls.Load())
	}
}
