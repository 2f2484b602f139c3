package manager

import (
	"github.com/prometheus/client_golang/prometheus"

	"wastesort/internal/tensor"
)

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wastesort",
			Subsystem: "model",
			Name:      "loads_total",
			Help:      "Model load attempts by result",
		},
		[]string{"result"},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wastesort",
			Subsystem: "model",
			Name:      "load_duration_seconds",
			Help:      "Duration of model loads in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wastesort",
			Subsystem: "model",
			Name:      "classifications_total",
			Help:      "Successful classifications by canonical category",
		},
		[]string{"category"},
	)

	classifyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wastesort",
			Subsystem: "model",
			Name:      "classify_errors_total",
			Help:      "Failed classifications by error kind",
		},
		[]string{"kind"},
	)

	classifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wastesort",
			Subsystem: "model",
			Name:      "classify_duration_seconds",
			Help:      "Duration of successful classifications in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	liveTensors = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "wastesort",
			Subsystem: "tensor",
			Name:      "live",
			Help:      "Tensors allocated and not yet released",
		},
		func() float64 { return float64(tensor.Live()) },
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, loadDuration, classifications, classifyErrors, classifyDuration, liveTensors)
}
