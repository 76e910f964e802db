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

package router_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/router"
)

// newTestMetrics builds the switch metrics against a throwaway registry;
// router.NewMetrics registers with the default one and can only run once per
// process.
func newTestMetrics() *router.Metrics {
	factory := promauto.With(prometheus.NewRegistry())
	return &router.Metrics{
		PacketsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "packets_received_total"},
			[]string{"account"},
		),
		PacketsReplied: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "packets_replied_total"},
			[]string{"account", "result", "code"},
		),
		PacketAmount: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "packet_amount_total"},
			[]string{"account"},
		),
		SwitchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{Name: "switch_duration_seconds"},
		),
	}
}

func TestTelemetryFilterCounters(t *testing.T) {
	m := newTestMetrics()
	src := srcAccount("alice")
	end := &terminal{reply: &ilp.Fulfill{}}

	reply := runFilter(t, router.NewTelemetryFilter(m), src, testPrepare("g.bob.x", 250), end)
	_, ok := reply.(*ilp.Fulfill)
	require.True(t, ok)
	assert.EqualValues(t, 1,
		testutil.ToFloat64(m.PacketsReceived.WithLabelValues("alice")))
	assert.EqualValues(t, 250,
		testutil.ToFloat64(m.PacketAmount.WithLabelValues("alice")))
	assert.EqualValues(t, 1,
		testutil.ToFloat64(m.PacketsReplied.WithLabelValues("alice", "fulfill", "")))

	end.reply = ilp.NewReject(ilp.CodeUnreachable, "gone", localAddr)
	runFilter(t, router.NewTelemetryFilter(m), src, testPrepare("g.bob.x", 250), end)
	assert.EqualValues(t, 1,
		testutil.ToFloat64(m.PacketsReplied.WithLabelValues("alice", "reject", "F02")))
	assert.EqualValues(t, 250,
		testutil.ToFloat64(m.PacketAmount.WithLabelValues("alice")),
		"rejected amounts are not added")
}

func TestTelemetrySitsBelowGuards(t *testing.T) {
	m := newTestMetrics()
	received := m.PacketsReceived.WithLabelValues("alice")
	src := srcAccount("alice")
	src.MaxPacketAmount = 100
	end := &terminal{reply: &ilp.Fulfill{}}
	chain := []router.Filter{
		router.NewMaxPacketAmountFilter(localAddr),
		router.NewTelemetryFilter(m),
		end,
	}

	// A guard rejection never reaches the telemetry filter and stays out of
	// the traffic counters.
	reply, err := router.Run(context.Background(), chain, src, testPrepare("g.bob.x", 500))
	require.NoError(t, err)
	requireReject(t, reply, ilp.CodeAmountTooLarge)
	assert.EqualValues(t, 0, testutil.ToFloat64(received))
	assert.Zero(t, end.calls)

	reply, err = router.Run(context.Background(), chain, src, testPrepare("g.bob.x", 50))
	require.NoError(t, err)
	_, ok := reply.(*ilp.Fulfill)
	require.True(t, ok)
	assert.EqualValues(t, 1, testutil.ToFloat64(received))
}
