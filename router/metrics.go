// Copyright 2026 Interledger Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package router

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
)

// Metrics defines the packet switch metrics.
type Metrics struct {
	PacketsReceived *prometheus.CounterVec
	PacketsReplied  *prometheus.CounterVec
	PacketAmount    *prometheus.CounterVec
	SwitchDuration  prometheus.Histogram
}

// NewMetrics initializes the switch metrics and registers them with the
// default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		PacketsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connector_packets_received_total",
				Help: "Total number of prepare packets accepted for dispatch",
			},
			[]string{"account"},
		),
		PacketsReplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connector_packets_replied_total",
				Help: "Total number of replies returned upstream",
			},
			[]string{"account", "result", "code"},
		),
		PacketAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connector_packet_amount_total",
				Help: "Sum of fulfilled packet amounts in source base units",
			},
			[]string{"account"},
		),
		SwitchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "connector_switch_duration_seconds",
				Help:    "Time from dispatching a prepare to receiving its reply",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
	}
}

// TelemetryFilter records packet counters and the per-packet dispatch
// latency, and logs every reply. It sits below the guard and balance filters,
// so only packets that cleared policy are counted; guard rejections stay out
// of the traffic metrics.
type TelemetryFilter struct {
	metrics *Metrics
}

// NewTelemetryFilter creates the filter. A nil metrics only logs.
func NewTelemetryFilter(m *Metrics) *TelemetryFilter {
	return &TelemetryFilter{metrics: m}
}

func (f *TelemetryFilter) Name() string { return "telemetry" }

func (f *TelemetryFilter) Filter(
	ctx context.Context,
	src *accounts.Settings,
	pkt *ilp.Prepare,
	next Chain,
) (ilp.Reply, error) {
	start := time.Now()
	account := string(src.ID)
	if f.metrics != nil {
		f.metrics.PacketsReceived.WithLabelValues(account).Inc()
	}

	reply, err := next.Proceed(ctx, src, pkt)

	elapsed := time.Since(start)
	logger := log.FromCtx(ctx)
	result, code := "error", ""
	switch r := reply.(type) {
	case *ilp.Fulfill:
		result = "fulfill"
		if f.metrics != nil {
			f.metrics.PacketAmount.WithLabelValues(account).Add(float64(pkt.Amount))
		}
	case *ilp.Reject:
		result, code = "reject", string(r.Code)
	}
	if f.metrics != nil {
		f.metrics.PacketsReplied.WithLabelValues(account, result, code).Inc()
		f.metrics.SwitchDuration.Observe(elapsed.Seconds())
	}
	if logger.Enabled(log.DebugLevel) {
		logger.Debug("Packet switched",
			"account", account, "destination", pkt.Destination,
			"amount", pkt.Amount, "result", result, "code", code,
			"duration", elapsed)
	}
	return reply, err
}
