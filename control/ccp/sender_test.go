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

package ccp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interledger/connector/control/routing"
	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ccp"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/pkg/private/serrors"
)

func newTestSender(
	table *routing.Table,
	packets PacketSender,
	rel accounts.Relationship,
	lookup RelationshipLookup,
) *Sender {
	if lookup == nil {
		lookup = func(accounts.ID) (accounts.Relationship, bool) {
			return accounts.Peer, true
		}
	}
	return NewSender(SenderConfig{
		PeerID:            "peer1",
		PeerRelationship:  rel,
		LocalAddress:      testLocalAddr,
		Interval:          time.Hour,
		MaxEpochsPerBatch: 2,
		HoldDownTime:      45 * time.Second,
	}, table, packets, lookup, log.Discard())
}

func addRoute(t *testing.T, table *routing.Table, prefix string, nextHop accounts.ID) {
	t.Helper()
	require.True(t, table.AddRoute(&routing.Route{
		TargetPrefix: ilp.MustParsePrefix(prefix),
		NextHop:      nextHop,
		Path:         []ilp.Address{testLocalAddr},
	}))
}

func decodeLastUpdate(t *testing.T, packets *fakeSender) *ccp.RouteUpdateRequest {
	t.Helper()
	last, ok := packets.last()
	require.True(t, ok, "expected a transmitted route update")
	require.Equal(t, ccp.RouteUpdateDestination, last.pkt.Destination)
	req, err := ccp.DecodeRouteUpdateRequest(last.pkt.Data)
	require.NoError(t, err)
	return req
}

func TestSenderBatchWindowing(t *testing.T) {
	table := routing.NewTable()
	addRoute(t, table, "g.a.", "other1")
	addRoute(t, table, "g.b.", "other2")
	addRoute(t, table, "g.c.", "other3")

	packets := newFakeSender()
	s := newTestSender(table, packets, accounts.Peer, nil)

	s.sendUpdate(context.Background())
	req := decodeLastUpdate(t, packets)
	assert.EqualValues(t, 0, req.FromEpochIndex)
	assert.EqualValues(t, 2, req.ToEpochIndex)
	assert.EqualValues(t, 3, req.CurrentEpochIndex)
	assert.Len(t, req.NewRoutes, 2)

	// The cursor advanced without an explicit ack; the next batch picks up
	// where the previous one ended.
	s.sendUpdate(context.Background())
	req = decodeLastUpdate(t, packets)
	assert.EqualValues(t, 2, req.FromEpochIndex)
	assert.EqualValues(t, 3, req.ToEpochIndex)
	assert.Len(t, req.NewRoutes, 1)

	// Fully caught up: heartbeat with an empty range.
	s.sendUpdate(context.Background())
	req = decodeLastUpdate(t, packets)
	assert.EqualValues(t, 3, req.FromEpochIndex)
	assert.EqualValues(t, 3, req.ToEpochIndex)
	assert.Empty(t, req.NewRoutes)
	assert.Empty(t, req.WithdrawnRoutePrefixes)
}

func TestSenderNoAdvanceOnFailure(t *testing.T) {
	table := routing.NewTable()
	addRoute(t, table, "g.a.", "other1")

	packets := newFakeSender()
	packets.setErr(serrors.New("link down"))
	s := newTestSender(table, packets, accounts.Peer, nil)

	s.sendUpdate(context.Background())
	packets.setErr(nil)
	s.sendUpdate(context.Background())

	// Same range retried after the failure.
	req := decodeLastUpdate(t, packets)
	assert.EqualValues(t, 0, req.FromEpochIndex)
	assert.EqualValues(t, 1, req.ToEpochIndex)

	// A reject must not advance the cursor either.
	packets.setReply(&ilp.Reject{Code: ilp.CodeInternalError, Message: "boom"})
	addRoute(t, table, "g.b.", "other2")
	s.sendUpdate(context.Background())
	packets.setReply(&ilp.Fulfill{Fulfillment: ilp.PeerProtocolFulfillment})
	s.sendUpdate(context.Background())
	req = decodeLastUpdate(t, packets)
	assert.EqualValues(t, 1, req.FromEpochIndex)
}

func TestSenderReflectionFilter(t *testing.T) {
	table := routing.NewTable()
	// Learned from peer1 itself: must go back as a withdrawal.
	addRoute(t, table, "g.a.", "peer1")
	addRoute(t, table, "g.b.", "other1")

	packets := newFakeSender()
	s := newTestSender(table, packets, accounts.Peer, nil)
	s.sendUpdate(context.Background())

	req := decodeLastUpdate(t, packets)
	require.Len(t, req.NewRoutes, 1)
	assert.Equal(t, ilp.MustParsePrefix("g.b."), req.NewRoutes[0].Prefix)
	assert.Equal(t,
		[]ilp.AddressPrefix{ilp.MustParsePrefix("g.a.")},
		req.WithdrawnRoutePrefixes)
}

func TestSenderParentRelationshipFilter(t *testing.T) {
	table := routing.NewTable()
	addRoute(t, table, "g.peerroute.", "somepeer")
	addRoute(t, table, "g.childroute.", "somechild")

	rels := map[accounts.ID]accounts.Relationship{
		"somepeer":  accounts.Peer,
		"somechild": accounts.Child,
	}
	lookup := func(id accounts.ID) (accounts.Relationship, bool) {
		rel, ok := rels[id]
		return rel, ok
	}

	packets := newFakeSender()
	s := newTestSender(table, packets, accounts.Parent, lookup)
	s.sendUpdate(context.Background())

	// No transit for peers offered to a parent; child routes pass.
	req := decodeLastUpdate(t, packets)
	require.Len(t, req.NewRoutes, 1)
	assert.Equal(t, ilp.MustParsePrefix("g.childroute."), req.NewRoutes[0].Prefix)
	assert.Equal(t,
		[]ilp.AddressPrefix{ilp.MustParsePrefix("g.peerroute.")},
		req.WithdrawnRoutePrefixes)
}

func TestSenderChildRouteFilter(t *testing.T) {
	table := routing.NewTable()
	// Single-hop route under our own address: implicit, not exported.
	addRoute(t, table, "test.local.child1.", "child1")
	// Our own prefix is exported.
	addRoute(t, table, "test.local.", "ping")

	packets := newFakeSender()
	s := newTestSender(table, packets, accounts.Peer, nil)
	s.sendUpdate(context.Background())

	req := decodeLastUpdate(t, packets)
	require.Len(t, req.NewRoutes, 1)
	assert.Equal(t, ilp.MustParsePrefix("test.local."), req.NewRoutes[0].Prefix)
	assert.Equal(t,
		[]ilp.AddressPrefix{ilp.MustParsePrefix("test.local.child1.")},
		req.WithdrawnRoutePrefixes)
}

func TestSenderDedupWithinBatch(t *testing.T) {
	table := routing.NewTable()
	prefix := ilp.MustParsePrefix("g.flap.")
	require.True(t, table.Replace(prefix, &routing.Route{
		TargetPrefix: prefix, NextHop: "other1",
	}))
	require.True(t, table.Replace(prefix, nil))

	packets := newFakeSender()
	s := newTestSender(table, packets, accounts.Peer, nil)
	s.sendUpdate(context.Background())

	// Add-then-withdraw within one batch collapses to the final state.
	req := decodeLastUpdate(t, packets)
	assert.Empty(t, req.NewRoutes)
	assert.Equal(t, []ilp.AddressPrefix{prefix}, req.WithdrawnRoutePrefixes)
}

func TestSenderTableResetForcesFullResync(t *testing.T) {
	table := routing.NewTable()
	addRoute(t, table, "g.a.", "other1")

	packets := newFakeSender()
	s := newTestSender(table, packets, accounts.Peer, nil)
	s.sendUpdate(context.Background())

	table.Reset()
	addRoute(t, table, "g.b.", "other2")
	s.sendUpdate(context.Background())

	req := decodeLastUpdate(t, packets)
	assert.Equal(t, table.ID(), req.RoutingTableID)
	assert.EqualValues(t, 0, req.FromEpochIndex)
	assert.EqualValues(t, 2, req.ToEpochIndex)
	assert.Len(t, req.NewRoutes, 2)
}

func TestSenderModeTransitions(t *testing.T) {
	table := routing.NewTable()
	addRoute(t, table, "g.a.", "other1")

	packets := newFakeSender()
	s := newTestSender(table, packets, accounts.Peer, nil)
	assert.Equal(t, ccp.ModeIdle, s.Mode())

	s.HandleRouteControl(&ccp.RouteControlRequest{Mode: ccp.ModeSync})
	assert.Equal(t, ccp.ModeSync, s.Mode())

	// The triggered initial broadcast runs in the background.
	assert.Eventually(t, func() bool {
		return len(packets.packets()) > 0
	}, 5*time.Second, 10*time.Millisecond)

	s.HandleRouteControl(&ccp.RouteControlRequest{Mode: ccp.ModeIdle})
	assert.Equal(t, ccp.ModeIdle, s.Mode())

	// Stop after idle is a no-op.
	s.Stop()
	s.Stop()
}

func TestSenderAdoptsPeerEpoch(t *testing.T) {
	table := routing.NewTable()
	addRoute(t, table, "g.a.", "other1")
	addRoute(t, table, "g.b.", "other2")

	packets := newFakeSender()
	s := newTestSender(table, packets, accounts.Peer, nil)
	defer s.Stop()

	// The peer already knows epoch 1 of this very table.
	s.HandleRouteControl(&ccp.RouteControlRequest{
		Mode:                    ccp.ModeSync,
		LastKnownRoutingTableID: table.ID(),
		LastKnownEpoch:          1,
	})
	assert.Eventually(t, func() bool {
		return len(packets.packets()) > 0
	}, 5*time.Second, 10*time.Millisecond)

	req := decodeLastUpdate(t, packets)
	assert.EqualValues(t, 1, req.FromEpochIndex)
	assert.EqualValues(t, 2, req.ToEpochIndex)
}
