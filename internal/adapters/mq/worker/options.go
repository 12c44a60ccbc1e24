package worker

import (
	"github.com/okian/tiebreak/pkg/logger"
)

// Option configures an InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets the worker logger.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithCounters shares processed and failed counters between workers.
func WithCounters(c *Counters) Option {
	return func(w *InMemoryWorker) {
		if c != nil {
			w.counters = c
		}
	}
}
