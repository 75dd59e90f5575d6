package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(diagnosticsTotal.WithLabelValues(OutcomeScript))
	Diagnostic(OutcomeScript)
	Diagnostic(OutcomeScript)
	assert.Equal(t, before+2, testutil.ToFloat64(diagnosticsTotal.WithLabelValues(OutcomeScript)))

	run := testutil.ToFloat64(transpileTotal.WithLabelValues("run"))
	Transpiled(false)
	assert.Equal(t, run+1, testutil.ToFloat64(transpileTotal.WithLabelValues("run")))

	inv := testutil.ToFloat64(resolveInvalidationsTotal)
	Invalidated(0)
	Invalidated(3)
	assert.Equal(t, inv+3, testutil.ToFloat64(resolveInvalidationsTotal))
}

func TestHandlerExposesCounters(t *testing.T) {
	Resolved("cached")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "astrols_resolve_total"))
}
