package engine

import (
	"time"

	"github.com/actionpipe/actionpipe/logging"
	"github.com/actionpipe/actionpipe/pipeline"
	"github.com/actionpipe/actionpipe/registry"
	"github.com/actionpipe/actionpipe/stats"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithName sets the engine name reported by RegistryInfo.
func WithName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.name = name
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithDefaultMode sets the execution mode used for actions without an
// explicit override. The default is sequential.
func WithDefaultMode(mode pipeline.Mode) Option {
	return func(e *Engine) {
		e.defaultMode = mode
	}
}

// WithMaxHandlersPerAction limits how many handlers may be registered
// per action. Zero means unlimited.
func WithMaxHandlersPerAction(n int) Option {
	return func(e *Engine) {
		e.maxHandlers = n
	}
}

// WithPanicHandler sets the handler notified of recovered handler
// panics, after the engine's per-action panic counter is updated.
func WithPanicHandler(h pipeline.PanicHandler) Option {
	return func(e *Engine) {
		e.panicHandler = h
	}
}

// WithObserver registers a statistics observer, for example a metrics
// exporter.
func WithObserver(o stats.Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// DispatchOption configures one dispatch call.
type DispatchOption func(*pipeline.Options)

// WithMode overrides the execution mode for this dispatch only.
func WithMode(mode pipeline.Mode) DispatchOption {
	return func(o *pipeline.Options) {
		o.Mode = &mode
	}
}

// WithQuery limits this dispatch to handlers matching the query.
func WithQuery(q *registry.Query) DispatchOption {
	return func(o *pipeline.Options) {
		o.Query = q
	}
}

// WithCollector sets the result collection strategy for this dispatch.
func WithCollector(cfg pipeline.CollectorConfig) DispatchOption {
	return func(o *pipeline.Options) {
		o.Collector = cfg
	}
}

// WithAutoAbort installs a dispatch-level deadline.
func WithAutoAbort(d time.Duration) DispatchOption {
	return func(o *pipeline.Options) {
		o.AutoAbort = d
	}
}
