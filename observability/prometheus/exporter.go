// Package prometheus exports dispatch statistics as Prometheus metrics.
//
// The Exporter implements stats.Observer; attach it to an engine with
// engine.WithObserver and every completed execution updates the
// collectors:
//
//	exp, _ := prometheus.NewExporter(prometheus.DefaultRegisterer)
//	eng := engine.New(engine.WithObserver(exp))
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/actionpipe/actionpipe/stats"
)

// DefaultRegisterer re-exports the client library's default registerer
// for callers that do not manage their own registry.
var DefaultRegisterer = prometheus.DefaultRegisterer

// Exporter translates dispatch records into Prometheus metrics.
type Exporter struct {
	dispatches    *prometheus.CounterVec
	handlerErrors *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewExporter creates an exporter and registers its collectors.
func NewExporter(reg prometheus.Registerer) (*Exporter, error) {
	e := &Exporter{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionpipe",
			Name:      "dispatches_total",
			Help:      "Completed dispatches by action and outcome.",
		}, []string{"action", "outcome"}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionpipe",
			Name:      "handler_errors_total",
			Help:      "Handler failures by action.",
		}, []string{"action"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "actionpipe",
			Name:      "dispatch_duration_seconds",
			Help:      "Dispatch wall time by action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}

	for _, c := range []prometheus.Collector{e.dispatches, e.handlerErrors, e.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Observe implements stats.Observer.
func (e *Exporter) Observe(r stats.Record) {
	e.dispatches.WithLabelValues(r.Action, outcomeLabel(r)).Inc()
	if r.HandlerErrors > 0 {
		e.handlerErrors.WithLabelValues(r.Action).Add(float64(r.HandlerErrors))
	}
	e.duration.WithLabelValues(r.Action).Observe(r.Duration.Seconds())
}

func outcomeLabel(r stats.Record) string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.Success:
		return "success"
	default:
		return "failed"
	}
}
