package batch

import (
	"time"

	"github.com/batchforge/batchengine/batch/emit"
)

// Option configures a Manager at construction time.
//
// Functional options are chainable, self-documenting, and all optional.
//
// Example:
//
//	mgr, err := batch.NewManager(repo, processor,
//	    batch.WithDefaultConcurrency(8),
//	    batch.WithItemTimeout(2*time.Minute),
//	    batch.WithMetrics(batch.NewMetrics(nil)),
//	)
type Option func(*managerConfig) error

// managerConfig collects options before they're applied to a Manager.
type managerConfig struct {
	emitter                    emit.Emitter
	metrics                    *Metrics
	defaultConcurrency         int
	defaultCheckpointFrequency int
	itemTimeout                time.Duration
	reconcileEvery             int
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		emitter:                    emit.NewNullEmitter(),
		defaultConcurrency:         defaultExecutionOptions().Concurrency,
		defaultCheckpointFrequency: defaultExecutionOptions().CheckpointFrequency,
		itemTimeout:                5 * time.Minute,
		reconcileEvery:             50,
	}
}

// WithEmitter sets the event emitter the Manager and Executor report
// lifecycle and item events to.
//
// Default: NullEmitter (no-op).
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *managerConfig) error {
		if e == nil {
			return &ValidationError{Field: "emitter", Message: "must not be nil"}
		}
		cfg.emitter = e
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection on every job the Manager
// runs.
//
// Metrics tracked:
//   - active_workers: current semaphore occupancy
//   - item_latency_ms: per-item Processor duration, by job/phase/status
//   - retries_total: retry attempts, by job/phase
//   - dead_letters_total: items exhausted to FAILED, by job/phase
//   - checkpoints_total: checkpoint writes, by job/trigger
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	mgr, err := batch.NewManager(repo, processor, batch.WithMetrics(batch.NewMetrics(registry)))
func WithMetrics(metrics *Metrics) Option {
	return func(cfg *managerConfig) error {
		cfg.metrics = metrics
		return nil
	}
}

// WithDefaultConcurrency sets the per-phase concurrency used when a
// submitted JobDefinition.Concurrency is 0.
//
// Default: 5.
func WithDefaultConcurrency(n int) Option {
	return func(cfg *managerConfig) error {
		if n < 1 {
			return &ValidationError{Field: "concurrency", Message: "must be at least 1"}
		}
		cfg.defaultConcurrency = n
		return nil
	}
}

// WithDefaultCheckpointFrequency sets the per-phase checkpoint frequency
// used when a submitted JobDefinition.CheckpointFrequency is 0.
//
// Default: 10.
func WithDefaultCheckpointFrequency(n int) Option {
	return func(cfg *managerConfig) error {
		if n < 1 {
			return &ValidationError{Field: "checkpoint_frequency", Message: "must be at least 1"}
		}
		cfg.defaultCheckpointFrequency = n
		return nil
	}
}

// WithItemTimeout sets the maximum duration a single Processor.Process call
// is allowed to run before the Executor treats it as a failed attempt.
//
// Default: 5m.
func WithItemTimeout(d time.Duration) Option {
	return func(cfg *managerConfig) error {
		if d <= 0 {
			return &ValidationError{Field: "item_timeout", Message: "must be positive"}
		}
		cfg.itemTimeout = d
		return nil
	}
}

// WithReconcileEvery sets how many item completions elapse between analytics
// reconciliation passes.
//
// Default: 50.
func WithReconcileEvery(n int) Option {
	return func(cfg *managerConfig) error {
		if n < 1 {
			return &ValidationError{Field: "reconcile_every", Message: "must be at least 1"}
		}
		cfg.reconcileEvery = n
		return nil
	}
}
