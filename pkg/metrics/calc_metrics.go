// Calculator metric set
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"strconv"
	"sync"
	"time"
)

// CalcMetrics bundles the metrics the calculator exposes.
type CalcMetrics struct {
	registry *Registry

	// SolveTotal counts solves by timer and outcome (ok/unachievable).
	SolveTotal *Counter

	// SolveDuration tracks solve wall time in seconds.
	SolveDuration *Histogram

	// WSClients tracks currently connected websocket clients.
	WSClients *Gauge
}

var (
	globalCalc     *CalcMetrics
	globalCalcOnce sync.Once
)

// NewCalcMetrics creates the calculator metric set on a fresh registry.
func NewCalcMetrics() *CalcMetrics {
	r := NewRegistry()
	m := &CalcMetrics{
		registry: r,
		SolveTotal: NewCounter("avrpwm_solve_total",
			"Number of PWM solve requests by timer and outcome"),
		SolveDuration: NewHistogram("avrpwm_solve_duration_seconds",
			"Wall time of PWM solve requests",
			[]float64{1e-6, 1e-5, 1e-4, 1e-3, 1e-2}),
		WSClients: NewGauge("avrpwm_websocket_clients",
			"Currently connected websocket clients"),
	}
	r.Register(m.SolveTotal)
	r.Register(m.SolveDuration)
	r.Register(m.WSClients)
	return m
}

// Global returns the process-wide calculator metric set.
func Global() *CalcMetrics {
	globalCalcOnce.Do(func() {
		globalCalc = NewCalcMetrics()
	})
	return globalCalc
}

// Gather serializes the metric set in Prometheus text format.
func (m *CalcMetrics) Gather() string {
	return m.registry.Gather()
}

// RecordSolve records one solve invocation.
func (m *CalcMetrics) RecordSolve(timer int, achievable bool, elapsed time.Duration) {
	outcome := "ok"
	if !achievable {
		outcome = "unachievable"
	}
	labels := Labels{"timer": strconv.Itoa(timer), "outcome": outcome}
	m.SolveTotal.Inc(labels)
	m.SolveDuration.Observe(nil, elapsed.Seconds())
}
