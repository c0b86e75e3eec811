package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sondajes/internal/errors"
)

func TestObserveLoadLabelsByCode(t *testing.T) {
	m := New()
	m.ObserveLoad(20*time.Millisecond, nil)
	m.ObserveLoad(5*time.Millisecond, apperrors.SheetNotFound("2025 GNRL", nil))
	m.ObserveLoad(5*time.Millisecond, apperrors.SheetNotFound("2024", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.loads.WithLabelValues(apperrors.CodeSheetNotFound)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRun("filter", 12)
	m.SetSessions(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `sondajes_pipeline_runs_total{dashboard="filter"} 1`)
	assert.Contains(t, string(body), "sondajes_sessions 3")
	assert.Contains(t, string(body), "sondajes_pipeline_rows_count 1")
}
