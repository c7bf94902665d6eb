package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	modelState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "storyd",
			Name:      "model_state",
			Help:      "Current model lifecycle state (1 for the active state, 0 otherwise).",
		},
		[]string{"state"},
	)
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyd",
			Name:      "model_loads_total",
			Help:      "Model load attempts by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(modelState, loadsTotal)
}

func setStateGauge(s State) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		modelState.WithLabelValues(string(st)).Set(v)
	}
}
