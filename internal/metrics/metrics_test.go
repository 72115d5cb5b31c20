package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncClassification("matched")
	m.IncClassification("matched")
	m.IncClassification("unmatched")
	m.AddRows("written", 25)
	m.AddRows("skipped", 0)
	m.IncRetries()
	m.ObserveReport("requests", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Classifications.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues("unmatched")))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.LoaderRows.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoaderRetries))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ReportDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncClassification("matched")
	m.AddRows("read", 1)
	m.IncRetries()
	m.ObserveReport("requests", time.Second)
}

func TestNewServer_ExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.AddRows("written", 3)

	srv := NewServer(":0", reg)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `careanalytics_deprivation_rows_total{outcome="written"} 3`)
}
