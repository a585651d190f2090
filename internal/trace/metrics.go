// Copyright 2025 Ying-Yu Ho. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package trace

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes the event stream and exposes Prometheus counters for
// the quantities operators care about during long runs. It piggybacks on
// the log rather than instrumenting each component, so the counters are
// guaranteed to agree with the log.
type Metrics struct {
	events    *prometheus.CounterVec
	dataBytes prometheus.Counter
	drops     prometheus.Counter
	cwnd      *prometheus.GaugeVec
}

// NewMetrics builds the metric set and registers it with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "networksim_events_total",
			Help: "Event-log lines emitted, by event kind",
		}, []string{"kind"}),
		dataBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "networksim_data_bytes_sent_total",
			Help: "Payload bytes handed to links by sending hosts",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "networksim_packet_loss_total",
			Help: "Data packets dropped by tail-drop admission",
		}),
		cwnd: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "networksim_flow_cwnd",
			Help: "Latest congestion window per flow",
		}, []string{"flow"}),
	}
	reg.MustRegister(m.events, m.dataBytes, m.drops, m.cwnd)
	return m
}

// Observe implements Observer.
func (m *Metrics) Observe(t float64, kind string, fields []string) {
	m.events.WithLabelValues(kind).Inc()
	switch kind {
	case "send_data":
		if len(fields) >= 3 {
			if n, err := strconv.Atoi(fields[2]); err == nil {
				m.dataBytes.Add(float64(n))
			}
		}
	case "packet_loss":
		m.drops.Inc()
	case "window_size":
		if len(fields) >= 2 {
			if w, err := strconv.ParseFloat(fields[1], 64); err == nil {
				m.cwnd.WithLabelValues(fields[0]).Set(w)
			}
		}
	}
}
