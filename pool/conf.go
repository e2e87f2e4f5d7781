package pool

import (
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/batchrun/internal/metrics"
)

// Option is a functional option for configuring a Dispatcher.
type Option func(*config)

type config struct {
	width           int
	policy          FailurePolicy
	defaultKind     string
	defaultFunc     TaskFunc
	registry        *Registry
	logger          *zap.Logger
	rateLimiter     *rate.Limiter
	metrics         *metrics.Collector
	pinWorkers      bool
	beforeTaskStart func(TaskInfo)
	onTaskEnd       func(TaskInfo, any, error)
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		width:    runtime.GOMAXPROCS(0),
		policy:   Abort,
		registry: DefaultRegistry,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// WithWidth sets the number of parallel workers.
// A width of 1 or less runs every task inline on the caller's goroutine,
// in submission order. If not specified, defaults to runtime.GOMAXPROCS(0).
func WithWidth(n int) Option {
	return func(cfg *config) {
		cfg.width = n
	}
}

// WithFailurePolicy sets how workers react to a failing task.
// If not specified, defaults to Abort.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(cfg *config) {
		cfg.policy = p
	}
}

// WithDefaultKind sets the registry kind used for tasks that name none.
func WithDefaultKind(kind string) Option {
	return func(cfg *config) {
		cfg.defaultKind = kind
	}
}

// WithDefaultFunc sets the callable used for tasks that carry neither a
// func nor a kind, when no default kind is configured either.
func WithDefaultFunc(fn TaskFunc) Option {
	return func(cfg *config) {
		cfg.defaultFunc = fn
	}
}

// WithRegistry sets the registry task kinds are resolved against.
// If not specified, DefaultRegistry is used.
func WithRegistry(r *Registry) Option {
	return func(cfg *config) {
		if r != nil {
			cfg.registry = r
		}
	}
}

// WithLogger sets the logger used to report task failures and run summaries.
// If not specified, nothing is logged.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithRateLimit caps how fast workers start tasks, across the whole pool.
// tasksPerSecond is the sustained rate and burst the bucket size.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *config) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithMetrics records run, worker and task metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(cfg *config) {
		cfg.metrics = c
	}
}

// WithPinnedWorkers locks each spawned worker to its own OS thread and,
// where the platform supports it, pins that thread to one CPU.
// Inline (width <= 1) runs are never pinned.
func WithPinnedWorkers(pin bool) Option {
	return func(cfg *config) {
		cfg.pinWorkers = pin
	}
}

// WithBeforeTaskStart sets a hook called on the worker right before a task runs.
func WithBeforeTaskStart(fn func(TaskInfo)) Option {
	return func(cfg *config) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd sets a hook called on the worker right after a task returns,
// with its value and error. It runs for successes and failures alike.
func WithOnTaskEnd(fn func(info TaskInfo, value any, err error)) Option {
	return func(cfg *config) {
		cfg.onTaskEnd = fn
	}
}
