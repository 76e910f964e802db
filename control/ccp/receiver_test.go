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
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interledger/connector/pkg/ccp"
	"github.com/interledger/connector/pkg/ilp"
)

var (
	testLocalAddr = ilp.MustParseAddress("test.local")
	testPeerAddr  = ilp.MustParseAddress("test.peer")
)

func newTestReceiver(sender PacketSender) *Receiver {
	return NewReceiver("peer1", testLocalAddr, sender)
}

func routeUpdate(tableID uuid.UUID, from, to uint64) *ccp.RouteUpdateRequest {
	return &ccp.RouteUpdateRequest{
		Speaker:           testPeerAddr,
		RoutingTableID:    tableID,
		CurrentEpochIndex: to,
		FromEpochIndex:    from,
		ToEpochIndex:      to,
		HoldDownTime:      45 * time.Second,
	}
}

func TestReceiverAppliesBatch(t *testing.T) {
	r := newTestReceiver(newFakeSender())
	tableID := uuid.New()

	req := routeUpdate(tableID, 0, 2)
	req.NewRoutes = []ccp.Route{
		{Prefix: ilp.MustParsePrefix("g.usd."), Path: []ilp.Address{testPeerAddr}},
		{Prefix: ilp.MustParsePrefix("g.eur."), Path: []ilp.Address{testPeerAddr}},
	}
	changed, err := r.HandleRouteUpdate(context.Background(), req)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]ilp.AddressPrefix{"g.usd.", "g.eur."}, changed)
	assert.EqualValues(t, 2, r.expectedEpoch)

	route, ok := r.RouteFor("g.usd.")
	require.True(t, ok)
	assert.EqualValues(t, "peer1", route.NextHop)
	assert.False(t, r.Expired(time.Now()))
	assert.True(t, r.Expired(time.Now().Add(time.Minute)))
}

func TestReceiverTableIDChangeResetsCursor(t *testing.T) {
	r := newTestReceiver(newFakeSender())
	oldTable := uuid.New()

	req := routeUpdate(oldTable, 0, 5)
	req.NewRoutes = []ccp.Route{
		{Prefix: ilp.MustParsePrefix("g.usd."), Path: []ilp.Address{testPeerAddr}},
	}
	_, err := r.HandleRouteUpdate(context.Background(), req)
	require.NoError(t, err)
	require.EqualValues(t, 5, r.expectedEpoch)

	// The peer restarted with a fresh table: its epochs restart at 0 and
	// must be accepted despite our higher cursor.
	req = routeUpdate(uuid.New(), 0, 1)
	req.NewRoutes = []ccp.Route{
		{Prefix: ilp.MustParsePrefix("g.xrp."), Path: []ilp.Address{testPeerAddr}},
	}
	changed, err := r.HandleRouteUpdate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []ilp.AddressPrefix{ilp.MustParsePrefix("g.xrp.")}, changed)
	assert.EqualValues(t, 1, r.expectedEpoch)
}

func TestReceiverEpochGapDiscardsBatch(t *testing.T) {
	sender := newFakeSender()
	r := newTestReceiver(sender)
	tableID := uuid.New()

	_, err := r.HandleRouteUpdate(context.Background(), routeUpdate(tableID, 0, 2))
	require.NoError(t, err)

	// Batch [5, 7) while we expect 2: must be discarded with the cursor
	// untouched. The resync request is the Broadcaster's job.
	_, err = r.HandleRouteUpdate(context.Background(), routeUpdate(tableID, 5, 7))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEpochGap))
	assert.EqualValues(t, 2, r.expectedEpoch)
	assert.Len(t, sender.packets(), 0, "the receiver itself must not send")

	ctrl := r.PrepareControl(ccp.ModeSync)
	assert.EqualValues(t, 2, ctrl.LastKnownEpoch)
	assert.Equal(t, tableID, ctrl.LastKnownRoutingTableID)
}

func TestReceiverStaleBatchIgnored(t *testing.T) {
	r := newTestReceiver(newFakeSender())
	tableID := uuid.New()

	req := routeUpdate(tableID, 0, 3)
	req.NewRoutes = []ccp.Route{
		{Prefix: ilp.MustParsePrefix("g.usd."), Path: []ilp.Address{testPeerAddr}},
	}
	_, err := r.HandleRouteUpdate(context.Background(), req)
	require.NoError(t, err)

	// Retransmission of an already-applied range, now withdrawing the
	// prefix. It must not be re-applied.
	stale := routeUpdate(tableID, 0, 2)
	stale.WithdrawnRoutePrefixes = []ilp.AddressPrefix{"g.usd."}
	changed, err := r.HandleRouteUpdate(context.Background(), stale)
	require.NoError(t, err)
	assert.Empty(t, changed)
	_, ok := r.RouteFor("g.usd.")
	assert.True(t, ok)
	assert.EqualValues(t, 3, r.expectedEpoch)
}

func TestReceiverLoopTreatedAsWithdrawal(t *testing.T) {
	r := newTestReceiver(newFakeSender())
	tableID := uuid.New()

	req := routeUpdate(tableID, 0, 1)
	req.NewRoutes = []ccp.Route{
		{Prefix: ilp.MustParsePrefix("g.usd."), Path: []ilp.Address{testPeerAddr}},
	}
	_, err := r.HandleRouteUpdate(context.Background(), req)
	require.NoError(t, err)

	// The same prefix re-advertised with our own address in the path: the
	// previously accepted route must disappear.
	req = routeUpdate(tableID, 1, 2)
	req.NewRoutes = []ccp.Route{
		{
			Prefix: ilp.MustParsePrefix("g.usd."),
			Path:   []ilp.Address{testPeerAddr, testLocalAddr},
		},
	}
	changed, err := r.HandleRouteUpdate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []ilp.AddressPrefix{ilp.MustParsePrefix("g.usd.")}, changed)
	_, ok := r.RouteFor("g.usd.")
	assert.False(t, ok)
}

func TestReceiverWithdrawalOfUnknownPrefix(t *testing.T) {
	r := newTestReceiver(newFakeSender())

	req := routeUpdate(uuid.New(), 0, 1)
	req.WithdrawnRoutePrefixes = []ilp.AddressPrefix{"g.never.seen."}
	changed, err := r.HandleRouteUpdate(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.EqualValues(t, 1, r.expectedEpoch)
}

func TestReceiverControlRequests(t *testing.T) {
	sender := newFakeSender()
	r := newTestReceiver(sender)

	req := r.PrepareControl(ccp.ModeSync)
	require.NoError(t, r.SendControl(context.Background(), req))
	last, ok := sender.last()
	require.True(t, ok)
	assert.Equal(t, ccp.RouteControlDestination, last.pkt.Destination)
	ctrl, err := ccp.DecodeRouteControlRequest(last.pkt.Data)
	require.NoError(t, err)
	assert.Equal(t, ccp.ModeSync, ctrl.Mode)

	sender.setReply(&ilp.Reject{Code: ilp.CodeBadRequest, Message: "no"})
	assert.Error(t, r.SendControl(context.Background(), r.PrepareControl(ccp.ModeIdle)))
}
