package pool

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestDispatcher_Skip_LeavesSentinelAtFailedIndex(t *testing.T) {
	for _, width := range []int{1, 4} {
		t.Run(widthName(width), func(t *testing.T) {
			logger, logs := observed()
			d := New(WithWidth(width), WithFailurePolicy(Skip), WithLogger(logger))

			results, err := d.Run(context.Background(), numbered(5, failingAt(2)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			want := []any{0, 2, nil, 6, 8}
			got := Values(results)
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("slot %d: expected %v, got %v", i, want[i], got[i])
				}
			}

			if results[2].Status != StatusSkipped {
				t.Errorf("expected slot 2 skipped, got %s", results[2].Status)
			}
			if !errors.Is(results[2].Err, errBoom) {
				t.Errorf("expected slot 2 to carry the task error, got %v", results[2].Err)
			}

			if n := logs.FilterMessage("task failed, skipping").Len(); n != 1 {
				t.Errorf("expected 1 skip warning, got %d", n)
			}
		})
	}
}

func TestDispatcher_Abort_WidthOneStopsRun(t *testing.T) {
	var ran atomic.Int32
	fn := func(ctx context.Context, args Args) (any, error) {
		ran.Add(1)
		return failingAt(2)(ctx, args)
	}

	d := New(WithWidth(1), WithFailurePolicy(Abort))
	results, err := d.Run(context.Background(), numbered(5, fn))
	if err != nil {
		t.Fatalf("task failures must not surface as an error, got %v", err)
	}

	if ran.Load() != 3 {
		t.Errorf("expected 3 tasks to run, got %d", ran.Load())
	}

	wantStatus := []Status{StatusOK, StatusOK, StatusAborted, StatusPending, StatusPending}
	for i, want := range wantStatus {
		if results[i].Status != want {
			t.Errorf("slot %d: expected %s, got %s", i, want, results[i].Status)
		}
	}

	if results[3].Worker != -1 {
		t.Errorf("expected pending slot to have no worker, got %d", results[3].Worker)
	}
}

func TestDispatcher_Abort_SurvivingWorkersFinish(t *testing.T) {
	logger, logs := observed()
	d := New(WithWidth(3), WithFailurePolicy(Abort), WithLogger(logger))

	results, err := d.Run(context.Background(), numbered(20, failingAt(4)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := Summarize(results)
	if s.OK != 19 || s.Aborted != 1 || s.Pending != 0 {
		t.Fatalf("expected 19 ok and 1 aborted, got %+v", s)
	}

	var taskErr *TaskError
	if !errors.As(results[4].Err, &taskErr) {
		t.Fatalf("expected *TaskError, got %T", results[4].Err)
	}
	if taskErr.Index != 4 {
		t.Errorf("expected failing index 4, got %d", taskErr.Index)
	}

	if n := logs.FilterMessage("task failed, worker stopping").Len(); n != 1 {
		t.Errorf("expected 1 abort log, got %d", n)
	}
}

func TestDispatcher_Abort_EveryWorkerDies(t *testing.T) {
	d := New(WithWidth(2), WithFailurePolicy(Abort))

	fail := func(context.Context, Args) (any, error) { return nil, errBoom }
	results, err := d.Run(context.Background(), numbered(10, fail))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := Summarize(results)
	if s.Aborted != 2 {
		t.Errorf("expected each of the 2 workers to abort once, got %d", s.Aborted)
	}
	if s.Pending != 8 {
		t.Errorf("expected 8 pending slots, got %d", s.Pending)
	}
}

func TestDispatcher_PanicRecovery(t *testing.T) {
	panicky := func(ctx context.Context, args Args) (any, error) {
		n, _ := args.GetInt("n")
		if n == 1 {
			panic("task exploded")
		}
		return double(ctx, args)
	}

	d := New(WithWidth(2), WithFailurePolicy(Skip))
	results, err := d.Run(context.Background(), numbered(4, panicky))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var pe *PanicError
	if !errors.As(results[1].Err, &pe) {
		t.Fatalf("expected *PanicError, got %v", results[1].Err)
	}
	if pe.Value != "task exploded" {
		t.Errorf("expected panic value to be kept, got %v", pe.Value)
	}
	if len(pe.Stack) == 0 {
		t.Error("expected a stack trace")
	}
	if results[1].Value != nil {
		t.Errorf("expected no value on a panicked slot, got %v", results[1].Value)
	}

	if s := Summarize(results); s.OK != 3 {
		t.Errorf("expected 3 ok slots, got %d", s.OK)
	}
}

func TestDispatcher_ConfigError(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("double", double)

	tests := []struct {
		name    string
		opts    []Option
		specs   []TaskSpec
		wantErr error
		index   int
	}{
		{
			name:    "no callable and no default",
			specs:   []TaskSpec{{Args: NewArgs("n", 1)}},
			wantErr: ErrNoCallable,
		},
		{
			name:    "unknown kind",
			specs:   []TaskSpec{{Kind: "double", Args: NewArgs("n", 1)}, {Kind: "triple"}},
			wantErr: ErrUnknownKind,
			index:   1,
		},
		{
			name:    "unknown kind even with a default func",
			opts:    []Option{WithDefaultFunc(double)},
			specs:   []TaskSpec{{Kind: "triple"}},
			wantErr: ErrUnknownKind,
		},
		{
			name:    "unknown default kind",
			opts:    []Option{WithDefaultKind("triple")},
			specs:   []TaskSpec{{Func: double}, {Args: NewArgs("n", 1)}},
			wantErr: ErrUnknownKind,
			index:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hooks atomic.Int32
			logger, logs := observed()

			opts := append([]Option{
				WithWidth(4),
				WithRegistry(reg),
				WithLogger(logger),
				WithBeforeTaskStart(func(TaskInfo) { hooks.Add(1) }),
			}, tt.opts...)

			results, err := New(opts...).Run(context.Background(), tt.specs)
			if results != nil {
				t.Errorf("expected no results, got %v", results)
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if cfgErr.Index != tt.index {
				t.Errorf("expected index %d, got %d", tt.index, cfgErr.Index)
			}

			if hooks.Load() != 0 {
				t.Errorf("expected no task to start, got %d", hooks.Load())
			}
			if logs.Len() != 0 {
				t.Errorf("expected no log output, got %v", logs.All())
			}
		})
	}
}

func TestDispatcher_CallablePrecedence(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("kind", func(context.Context, Args) (any, error) { return "kind", nil })
	reg.MustRegister("default", func(context.Context, Args) (any, error) { return "default-kind", nil })

	own := func(context.Context, Args) (any, error) { return "func", nil }
	fallback := func(context.Context, Args) (any, error) { return "default-func", nil }

	specs := []TaskSpec{
		{Func: own, Kind: "kind"},
		{Kind: "kind"},
		{},
	}

	t.Run("default kind beats default func", func(t *testing.T) {
		d := New(WithWidth(1), WithRegistry(reg), WithDefaultKind("default"), WithDefaultFunc(fallback))
		results, err := d.Run(context.Background(), specs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []any{"func", "kind", "default-kind"}
		for i, w := range want {
			if results[i].Value != w {
				t.Errorf("slot %d: expected %v, got %v", i, w, results[i].Value)
			}
		}
		if results[2].Kind != "default" {
			t.Errorf("expected resolved kind %q, got %q", "default", results[2].Kind)
		}
	})

	t.Run("default func", func(t *testing.T) {
		d := New(WithWidth(1), WithRegistry(reg), WithDefaultFunc(fallback))
		results, err := d.Run(context.Background(), specs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[2].Value != "default-func" || results[2].Kind != "func" {
			t.Errorf("expected default func, got %v (%s)", results[2].Value, results[2].Kind)
		}
	})
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Index: 3, Kind: "lua", Err: ErrUnknownKind}
	if !strings.Contains(err.Error(), "task 3") || !strings.Contains(err.Error(), `"lua"`) {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{"abort", Abort, false},
		{"", Abort, false},
		{" SKIP ", Skip, false},
		{"retry", Abort, true},
	}

	for _, tt := range tests {
		got, err := ParseFailurePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFailurePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFailurePolicy(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
