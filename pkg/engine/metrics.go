package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warptools/pinflow/pfapi"
)

// Metrics holds the engine call metrics of this process.
// Serve it with promhttp.HandlerFor(engine.Metrics, promhttp.HandlerOpts{}).
var Metrics = prometheus.NewRegistry()

var (
	metricCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinflow_engine_calls_total",
			Help: "Engine operations invoked, by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
	metricCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinflow_engine_call_duration_seconds",
			Help:    "Time from dispatch to result of engine operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "transport"},
	)
	metricLiveHandles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pinflow_engine_live_handles",
			Help: "Owned handles not yet released, by engine",
		},
		[]string{"engine"},
	)
)

func init() {
	Metrics.MustRegister(metricCalls, metricCallDuration, metricLiveHandles)
}

// outcome is "ok" or the error code of a failed call.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, code := range []string{
		pfapi.CodeEngineFault, pfapi.CodeTransportFault, pfapi.CodeVersionUnsupported,
		pfapi.CodeLicenseUnavailable, pfapi.CodeInvalidArgument, pfapi.CodeTypeMismatch, pfapi.CodeNotFound,
	} {
		if pfapi.IsCode(err, code) {
			return code
		}
	}
	return "other"
}

func (e *Engine) observe(op pfapi.Op, start time.Time, err error) {
	metricCalls.WithLabelValues(op.Name, outcome(err)).Inc()
	metricCallDuration.WithLabelValues(op.Name, e.tr.Kind()).Observe(time.Since(start).Seconds())
}
