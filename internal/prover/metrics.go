package prover

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/orizon-lang/refinement/internal/proof"
)

// Metrics counts proof attempts by the strategy that settled them.
type Metrics struct {
	attempts      *prometheus.CounterVec
	solverSeconds prometheus.Histogram
}

// NewMetrics creates the prover collectors and registers them on reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orizon",
			Subsystem: "prover",
			Name:      "attempts_total",
			Help:      "Proof attempts by deciding strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		solverSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orizon",
			Subsystem: "prover",
			Name:      "solver_seconds",
			Help:      "Time spent waiting on the external decision procedure.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

func (m *Metrics) observe(r proof.Result) {
	if m == nil {
		return
	}
	strategy, outcome := string(r.Strategy), "proven"
	if !r.Proven {
		strategy, outcome = "none", "unproven"
	}
	m.attempts.WithLabelValues(strategy, outcome).Inc()
}

func (m *Metrics) observeSolver(seconds float64) {
	if m == nil {
		return
	}
	m.solverSeconds.Observe(seconds)
}
