package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveSaveDuration(15 * time.Millisecond)
	pr.IncSaveResult(ResultSuccess)
	pr.IncSaveResult(ResultFailed)
	pr.IncSaveResult(ResultSuccess)
	pr.IncSaveRetry()
	pr.IncEndpointCreated("clarin")
	pr.SetEndpointCount(3)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.saveResults.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.saveResults.WithLabelValues("failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.saveRetries), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.endpointsCreated.WithLabelValues("clarin")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.endpointCount), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveSaveDuration(time.Second)
		pr.IncSaveResult(ResultFailed)
		pr.IncSaveRetry()
		pr.IncEndpointCreated("g")
		pr.SetEndpointCount(1)
	})
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.SetEndpointCount(4)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "harvestcycle_endpoints 4"))
}

func TestSaveResult(t *testing.T) {
	assert.Equal(t, ResultSuccess, SaveResult(nil))
	assert.Equal(t, ResultFailed, SaveResult(errors.New("boom")))
}
