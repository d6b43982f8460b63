//go:build !integration

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivationCounters(t *testing.T) {
	before := testutil.ToFloat64(activationOutcomesTotal.WithLabelValues("validate", "activated"))
	IncActivationOutcome(" Validate ", "ACTIVATED")
	IncActivationOutcome("validate", "activated")
	assert.Equal(t, before+2, testutil.ToFloat64(activationOutcomesTotal.WithLabelValues("validate", "activated")))

	IncStoreError("deactivate")
	assert.GreaterOrEqual(t, testutil.ToFloat64(storeErrorsTotal.WithLabelValues("deactivate")), 1.0)
}

func TestObserveActivationDuration(t *testing.T) {
	ObserveActivationDuration("check_status", 15*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(activationOpDuration), 1)
}

func TestSetStorePoolStats(t *testing.T) {
	SetStorePoolStats("Postgres", 10, 7, 3)
	assert.Equal(t, 10.0, testutil.ToFloat64(storePoolConns.WithLabelValues("postgres", "total")))
	assert.Equal(t, 7.0, testutil.ToFloat64(storePoolConns.WithLabelValues("postgres", "idle")))
	assert.Equal(t, 3.0, testutil.ToFloat64(storePoolConns.WithLabelValues("postgres", "in_use")))
}

func TestMustRegisterToFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { MustRegisterTo(reg) })
	assert.Panics(t, func() { MustRegisterTo(reg) }, "second registration on the same registry collides")
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
