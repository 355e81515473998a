// Package metrics counts what happens during bandit runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bandits"

// Metrics holds the run counters. All counters live on Registry, which is
// private to the instance so several runs can be measured side by side.
type Metrics struct {
	Registry    *prometheus.Registry
	Pulls       *prometheus.CounterVec
	Optimal     *prometheus.CounterVec
	Exhausted   *prometheus.CounterVec
	Repetitions prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pulls_total",
			Help:      "Arm pulls made by each agent.",
		}, []string{"agent"}),
		Optimal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimal_pulls_total",
			Help:      "Pulls of the optimal arm by each agent.",
		}, []string{"agent"}),
		Exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exhausted_total",
			Help:      "Repetitions in which an agent ran out of budget.",
		}, []string{"agent"}),
		Repetitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repetitions_total",
			Help:      "Completed experiment repetitions.",
		}),
	}
	m.Registry.MustRegister(m.Pulls, m.Optimal, m.Exhausted, m.Repetitions)
	return m
}

// Totals sums every counter family on the registry across its labels.
func (m *Metrics) Totals() (map[string]float64, error) {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64, len(families))
	for _, mf := range families {
		var sum float64
		for _, metric := range mf.GetMetric() {
			sum += metric.GetCounter().GetValue()
		}
		totals[mf.GetName()] = sum
	}
	return totals, nil
}
