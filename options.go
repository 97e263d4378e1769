package bumpspace

import (
	"log/slog"

	"github.com/hupe1980/bumpspace/object"
	"github.com/hupe1980/bumpspace/resource"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	controller       *resource.Controller
	model            object.Model
	debugChecks      bool
	liveShrink       bool
}

// Option configures a Space at construction.
type Option func(*options)

// WithLogger configures a structured logger.
// If nil is passed, logging is disabled.
//
// Example:
//
//	logger := bumpspace.NewJSONLogger(slog.LevelInfo)
//	s, _ := bumpspace.New("main", 64<<20, bumpspace.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &bumpspace.BasicMetricsCollector{}
//	s, _ := bumpspace.New("main", 64<<20, bumpspace.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithMemoryController charges the space's reservation against a shared
// memory budget. Creation fails with a *ReservationError wrapping
// resource.ErrMemoryLimitExceeded when the budget is exhausted.
func WithMemoryController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithObjectModel configures how the walker reads objects.
// Defaults to object.Header.
func WithObjectModel(m object.Model) Option {
	return func(o *options) {
		if m == nil {
			m = object.Header{}
		}
		o.model = m
	}
}

// WithDebugChecks enables expensive invariant checks (revocation asserts,
// main-block allocation after blocks exist, ledger conservation).
func WithDebugChecks(enabled bool) Option {
	return func(o *options) {
		o.debugChecks = enabled
	}
}

// WithLiveShrink allows ClampGrowthLimit, which lowers the space's limit
// while it is in use. Collectors that cannot tolerate a moving limit leave
// this off.
func WithLiveShrink(enabled bool) Option {
	return func(o *options) {
		o.liveShrink = enabled
	}
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		model:            object.Header{},
	}
}
