package observability

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lattice"

// Metrics holds the session lifecycle collectors.
type Metrics struct {
	SessionsOpened  *prometheus.CounterVec
	SessionsClosed  *prometheus.CounterVec
	CloseErrors     prometheus.Counter
	Exhausted       prometheus.Counter
	ManualPending   prometheus.Gauge
	ClosesScheduled prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Sessions that ran a query, by disposal policy.",
		}, []string{"policy"}),
		SessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Sessions closed cleanly, by disposal policy.",
		}, []string{"policy"}),
		CloseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_close_errors_total",
			Help:      "Session closes that failed and were swallowed.",
		}),
		Exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_exhausted_total",
			Help:      "Result cursors read to the end.",
		}),
		ManualPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "manual_sessions_pending",
			Help:      "Manual sessions waiting for release.",
		}),
		ClosesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closes_scheduled_total",
			Help:      "Deferred closes handed to the scheduler.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SessionsOpened,
			m.SessionsClosed,
			m.CloseErrors,
			m.Exhausted,
			m.ManualPending,
			m.ClosesScheduled,
		)
	}
	return m
}

// Hooks returns lifecycle callbacks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionOpen: func(_ context.Context, e *domain.SessionEvent) {
			m.SessionsOpened.WithLabelValues(e.Policy.String()).Inc()
			if e.Policy == domain.PolicyManual {
				m.ManualPending.Inc()
			}
		},
		OnSessionClose: func(_ context.Context, e *domain.SessionEvent) {
			m.SessionsClosed.WithLabelValues(e.Policy.String()).Inc()
			if e.Policy == domain.PolicyManual {
				m.ManualPending.Dec()
			}
		},
		OnCloseError: func(_ context.Context, e *domain.SessionEvent) {
			m.CloseErrors.Inc()
			// The session is gone from the registry either way.
			if e.Policy == domain.PolicyManual {
				m.ManualPending.Dec()
			}
		},
		OnCloseScheduled: func(context.Context, *domain.SessionEvent) {
			m.ClosesScheduled.Inc()
		},
		OnResultExhausted: func(context.Context, *domain.SessionEvent) {
			m.Exhausted.Inc()
		},
	}
}
