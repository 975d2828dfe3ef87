// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for circuit breaker activity.
// One Metrics instance is shared by every breaker in a registry.
type Metrics struct {
	Requests     *prometheus.CounterVec
	Rejections   *prometheus.CounterVec
	StateChanges *prometheus.CounterVec
}

// NewMetrics creates the breaker metrics and registers them on the given
// registerer (usually prometheus.DefaultRegisterer).
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "shopmesh"
	}

	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "requests_total",
			Help:      "Total number of calls admitted by the circuit breaker",
		}, []string{"name"}),

		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "rejections_total",
			Help:      "Total number of calls rejected while open or probing",
		}, []string{"name"}),

		StateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state_changes_total",
			Help:      "Total number of state transitions",
		}, []string{"name", "state"}),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.Rejections, m.StateChanges)
	}
	return m
}

// RecordRequest counts an admitted call.
func (m *Metrics) RecordRequest(name string) {
	m.Requests.WithLabelValues(name).Inc()
}

// RecordRejection counts a fast rejection.
func (m *Metrics) RecordRejection(name string) {
	m.Rejections.WithLabelValues(name).Inc()
}

// RecordStateChange counts a transition into the given state.
func (m *Metrics) RecordStateChange(name string, to State) {
	m.StateChanges.WithLabelValues(name, string(to)).Inc()
}
