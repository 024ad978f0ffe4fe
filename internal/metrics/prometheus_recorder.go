package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	saveDuration     prom.Histogram
	saveResults      *prom.CounterVec
	saveRetries      prom.Counter
	endpointsCreated *prom.CounterVec
	endpointCount    prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.saveDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "harvestcycle",
			Name:      "save_duration_seconds",
			Help:      "Duration of overview saves, serialize and write",
			Buckets:   prom.DefBuckets,
		})
		pr.saveResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "harvestcycle",
			Name:      "save_results_total",
			Help:      "Overview save results by outcome",
		}, []string{"result"})
		pr.saveRetries = prom.NewCounter(prom.CounterOpts{
			Namespace: "harvestcycle",
			Name:      "save_retries_total",
			Help:      "Save attempts repeated after a transient failure",
		})
		pr.endpointsCreated = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "harvestcycle",
			Name:      "endpoints_created_total",
			Help:      "Endpoint records created on first lookup",
		}, []string{"group"})
		pr.endpointCount = prom.NewGauge(prom.GaugeOpts{
			Namespace: "harvestcycle",
			Name:      "endpoints",
			Help:      "Endpoint records held by the overview",
		})
		reg.MustRegister(pr.saveDuration, pr.saveResults, pr.saveRetries, pr.endpointsCreated, pr.endpointCount)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveSaveDuration(d time.Duration) {
	if p == nil || p.saveDuration == nil {
		return
	}
	p.saveDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSaveResult(result ResultLabel) {
	if p == nil || p.saveResults == nil {
		return
	}
	p.saveResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncSaveRetry() {
	if p == nil || p.saveRetries == nil {
		return
	}
	p.saveRetries.Inc()
}

func (p *PrometheusRecorder) IncEndpointCreated(group string) {
	if p == nil || p.endpointsCreated == nil {
		return
	}
	p.endpointsCreated.WithLabelValues(group).Inc()
}

func (p *PrometheusRecorder) SetEndpointCount(n int) {
	if p == nil || p.endpointCount == nil {
		return
	}
	p.endpointCount.Set(float64(n))
}
