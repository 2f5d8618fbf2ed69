package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the claim service's Prometheus metrics.
type Metrics struct {
	CodesValidated     *prometheus.CounterVec
	CodesConsumed      prometheus.Counter
	CodesReserved      prometheus.Counter
	Authorizations     prometheus.Counter
	ClaimFailures      *prometheus.CounterVec
	SubmissionLatency  prometheus.Histogram
	CompanionChecks    *prometheus.CounterVec
	CompanionMints     prometheus.Counter
	CircuitTransitions *prometheus.CounterVec
}

// New registers all metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		CodesValidated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "merch_codes_validated_total",
			Help: "Claim code validations by outcome",
		}, []string{"status"}),
		CodesConsumed: f.NewCounter(prometheus.CounterOpts{
			Name: "merch_codes_consumed_total",
			Help: "Claim codes transitioned to used",
		}),
		CodesReserved: f.NewCounter(prometheus.CounterOpts{
			Name: "merch_codes_reserved_total",
			Help: "Claim code reservations granted",
		}),
		Authorizations: f.NewCounter(prometheus.CounterOpts{
			Name: "merch_mint_authorizations_total",
			Help: "Mint authorizations signed by the issuer",
		}),
		ClaimFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "merch_claim_failures_total",
			Help: "Claim failures by phase and reason",
		}, []string{"phase", "reason"}),
		SubmissionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "merch_submission_latency_seconds",
			Help:    "Time from submission to confirmed receipt",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		CompanionChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "merch_companion_checks_total",
			Help: "Companion eligibility checks by result",
		}, []string{"eligible"}),
		CompanionMints: f.NewCounter(prometheus.CounterOpts{
			Name: "merch_companion_mints_total",
			Help: "Companion mints confirmed",
		}),
		CircuitTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "merch_circuit_transitions_total",
			Help: "Circuit breaker state transitions",
		}, []string{"breaker", "state"}),
	}
}

func (m *Metrics) IncValidated(status string) {
	if m == nil {
		return
	}
	m.CodesValidated.WithLabelValues(status).Inc()
}

func (m *Metrics) IncConsumed() {
	if m == nil {
		return
	}
	m.CodesConsumed.Inc()
}

func (m *Metrics) IncReserved() {
	if m == nil {
		return
	}
	m.CodesReserved.Inc()
}

func (m *Metrics) IncAuthorized() {
	if m == nil {
		return
	}
	m.Authorizations.Inc()
}

func (m *Metrics) IncClaimFailure(phase, reason string) {
	if m == nil {
		return
	}
	m.ClaimFailures.WithLabelValues(phase, reason).Inc()
}

func (m *Metrics) ObserveSubmission(seconds float64) {
	if m == nil {
		return
	}
	m.SubmissionLatency.Observe(seconds)
}

func (m *Metrics) IncCompanionCheck(eligible bool) {
	if m == nil {
		return
	}
	label := "false"
	if eligible {
		label = "true"
	}
	m.CompanionChecks.WithLabelValues(label).Inc()
}

func (m *Metrics) IncCompanionMint() {
	if m == nil {
		return
	}
	m.CompanionMints.Inc()
}

func (m *Metrics) IncCircuitTransition(breaker, state string) {
	if m == nil {
		return
	}
	m.CircuitTransitions.WithLabelValues(breaker, state).Inc()
}
