// Package metrics records context activity as Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components take one
// unconditionally.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	ctxerrors "github.com/km-arc/go-appcontext/framework/errors"
)

const namespace = "appctx"

// Metrics holds the collectors shared by every context registered against
// the same Registerer. Series are labelled by application name, never by
// context id, so child scopes do not add series.
type Metrics struct {
	lookups          *prometheus.CounterVec   // by application, op and result
	publishes        *prometheus.CounterVec   // by application
	listenerFailures *prometheus.CounterVec   // by application
	refreshes        *prometheus.CounterVec   // by application and status
	refreshDuration  *prometheus.HistogramVec // by application
	messageMisses    *prometheus.CounterVec   // by application
	activeContexts   prometheus.Gauge
}

// New creates the collectors and registers them with reg. Registering a
// second time against the same reg reuses the existing collectors.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil // metrics disabled
	}
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "lookups_total",
			Help:      "Component lookups by operation and result",
		}, []string{"application", "op", "result"}), // result: hit, not_found, ambiguous, error

		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published at a context level",
		}, []string{"application"}),

		listenerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "listener_failures_total",
			Help:      "Listener invocations that returned an error or panicked",
		}, []string{"application"}),

		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "context",
			Name:      "refreshes_total",
			Help:      "Context refreshes by outcome",
		}, []string{"application", "status"}), // status: success, failure

		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "context",
			Name:      "refresh_duration_seconds",
			Help:      "Time to build and swap in a context state",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"application"}),

		messageMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "misses_total",
			Help:      "Message keys that resolved nowhere in the hierarchy",
		}, []string{"application"}),

		activeContexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "context",
			Name:      "active",
			Help:      "Contexts currently active",
		}),
	}

	var err error
	if m.lookups, err = register(reg, m.lookups); err != nil {
		return nil, err
	}
	if m.publishes, err = register(reg, m.publishes); err != nil {
		return nil, err
	}
	if m.listenerFailures, err = register(reg, m.listenerFailures); err != nil {
		return nil, err
	}
	if m.refreshes, err = register(reg, m.refreshes); err != nil {
		return nil, err
	}
	if m.refreshDuration, err = register(reg, m.refreshDuration); err != nil {
		return nil, err
	}
	if m.messageMisses, err = register(reg, m.messageMisses); err != nil {
		return nil, err
	}
	if m.activeContexts, err = register(reg, m.activeContexts); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Lookup records one registry lookup outcome.
func (m *Metrics) Lookup(application, op string, err error) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(application, op, lookupResult(err)).Inc()
}

func lookupResult(err error) string {
	switch {
	case err == nil:
		return "hit"
	case ctxerrors.Is(err, ctxerrors.ErrNotFound):
		return "not_found"
	case ctxerrors.Is(err, ctxerrors.ErrAmbiguous):
		return "ambiguous"
	default:
		return "error"
	}
}

// Published records one publish with its listener failure count.
func (m *Metrics) Published(application string, failures int) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(application).Inc()
	if failures > 0 {
		m.listenerFailures.WithLabelValues(application).Add(float64(failures))
	}
}

// Refreshed records one refresh attempt.
func (m *Metrics) Refreshed(application string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.refreshes.WithLabelValues(application, status).Inc()
	m.refreshDuration.WithLabelValues(application).Observe(d.Seconds())
}

// MessageMiss records a key that resolved nowhere.
func (m *Metrics) MessageMiss(application string) {
	if m == nil {
		return
	}
	m.messageMisses.WithLabelValues(application).Inc()
}

// Activated and Deactivated track the number of active contexts.
func (m *Metrics) Activated() {
	if m != nil {
		m.activeContexts.Inc()
	}
}

func (m *Metrics) Deactivated() {
	if m != nil {
		m.activeContexts.Dec()
	}
}
