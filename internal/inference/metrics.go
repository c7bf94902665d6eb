package inference

import "github.com/prometheus/client_golang/prometheus"

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyd",
			Name:      "generations_total",
			Help:      "Story generation requests by outcome.",
		},
		[]string{"outcome"},
	)
	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storyd",
			Name:      "generation_duration_seconds",
			Help:      "Story generation latency by outcome.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 45, 60},
		},
		[]string{"outcome"},
	)
	poolRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "storyd",
		Name:      "pool_running",
		Help:      "Generation jobs holding a worker slot.",
	})
	poolQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "storyd",
		Name:      "pool_queued",
		Help:      "Generation jobs waiting for a worker slot.",
	})
	poolAbandoned = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "storyd",
		Name:      "pool_abandoned",
		Help:      "Running generation jobs whose caller already timed out.",
	})
)

func init() {
	prometheus.MustRegister(generationsTotal, generationDuration, poolRunning, poolQueued, poolAbandoned)
}
