package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncValidated("CLAIM_VALID")
	m.IncValidated("CLAIM_VALID")
	m.IncValidated("CLAIM_INVALID")
	m.IncConsumed()
	m.IncClaimFailure("submit", "Timeout")
	m.IncCompanionCheck(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CodesValidated.WithLabelValues("CLAIM_VALID")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodesConsumed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClaimFailures.WithLabelValues("submit", "Timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompanionChecks.WithLabelValues("false")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.IncConsumed()
	m.IncClaimFailure("sign", "x")
	m.ObserveSubmission(1)
	m.IncCircuitTransition("rpc", "open")
}
