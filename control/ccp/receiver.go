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

// Package ccp implements the connector side of the route broadcast
// protocol: a Receiver and a Sender per peer, owned by the Broadcaster,
// which derives the local forwarding table from all peers' advertisements.
package ccp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/interledger/connector/control/routing"
	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ccp"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/pkg/private/serrors"
)

// PacketSender delivers peer-protocol packets to a peer account's link.
type PacketSender interface {
	SendToPeer(ctx context.Context, peer accounts.ID, pkt *ilp.Prepare) (ilp.Reply, error)
}

// Receiver tracks the routes one peer advertises to us. Batches for a given
// peer are applied strictly in epoch order; batches for different peers are
// independent.
type Receiver struct {
	peerID       accounts.ID
	localAddress ilp.Address
	sender       PacketSender

	// All mutable state below is owned by the Broadcaster, which serializes
	// access per peer. The Receiver itself holds no lock.
	routingTableID uuid.UUID
	expectedEpoch  uint64
	routes         map[ilp.AddressPrefix]*routing.Route
	deadline       time.Time
}

// NewReceiver creates a receiver for the given peer. It starts in IDLE mode;
// ask the peer for advertisements by sending a PrepareControl(ModeSync)
// request.
func NewReceiver(peerID accounts.ID, localAddress ilp.Address, sender PacketSender) *Receiver {
	return &Receiver{
		peerID:       peerID,
		localAddress: localAddress,
		sender:       sender,
		routes:       make(map[ilp.AddressPrefix]*routing.Route),
	}
}

// PrepareControl snapshots a route control request for the given mode from
// the current table id and epoch cursor. The Broadcaster calls this while it
// holds its lock; the returned request is transmitted with SendControl after
// the lock is released.
func (r *Receiver) PrepareControl(mode ccp.Mode) *ccp.RouteControlRequest {
	return &ccp.RouteControlRequest{
		Mode:                    mode,
		LastKnownRoutingTableID: r.routingTableID,
		LastKnownEpoch:          r.expectedEpoch,
	}
}

// SendControl transmits a prepared route control request to the peer. It
// reads no mutable receiver state and must not run under the Broadcaster's
// lock: the round trip can take up to routeControlExpiry and would stall
// route application for every other peer.
func (r *Receiver) SendControl(ctx context.Context, req *ccp.RouteControlRequest) error {
	reply, err := r.sender.SendToPeer(ctx, r.peerID,
		ccp.NewRouteControlPrepare(req, time.Now().Add(routeControlExpiry)))
	if err != nil {
		return serrors.Wrap("sending route control", err,
			"peer", r.peerID, "mode", req.Mode)
	}
	if rej, ok := reply.(*ilp.Reject); ok {
		return serrors.New("route control rejected",
			"peer", r.peerID, "mode", req.Mode, "code", rej.Code, "message", rej.Message)
	}
	return nil
}

const routeControlExpiry = 30 * time.Second

// ErrEpochGap reports an update batch that does not line up with the
// locally tracked epoch cursor; the batch is discarded and the peer must be
// asked to resend from the cursor.
var ErrEpochGap = serrors.New("epoch gap in route update")

// HandleRouteUpdate applies one advertisement batch and returns the prefixes
// whose incoming route changed. A batch whose epoch range does not line up
// with the locally tracked cursor is discarded with ErrEpochGap.
func (r *Receiver) HandleRouteUpdate(
	ctx context.Context,
	req *ccp.RouteUpdateRequest,
) ([]ilp.AddressPrefix, error) {
	logger := log.FromCtx(ctx)
	if req.RoutingTableID != r.routingTableID {
		logger.Debug("Peer routing table changed, resetting epoch cursor",
			"peer", r.peerID, "old_table", r.routingTableID, "new_table", req.RoutingTableID)
		r.routingTableID = req.RoutingTableID
		r.expectedEpoch = 0
	}
	switch {
	case req.FromEpochIndex > r.expectedEpoch:
		return nil, serrors.Wrap("discarding route update", ErrEpochGap,
			"peer", r.peerID, "expected", r.expectedEpoch, "from", req.FromEpochIndex)
	case req.ToEpochIndex < r.expectedEpoch:
		// Stale retransmission; already applied, nothing to do.
		return nil, nil
	}

	r.deadline = time.Now().Add(req.HoldDownTime)
	var changed []ilp.AddressPrefix
	for _, route := range req.NewRoutes {
		next, ok := r.acceptRoute(route)
		if !ok {
			// Unusable advertisement (e.g. routing loop): treat as a
			// withdrawal so a previously accepted route does not linger.
			if _, had := r.routes[route.Prefix]; had {
				delete(r.routes, route.Prefix)
				changed = append(changed, route.Prefix)
			}
			continue
		}
		r.routes[route.Prefix] = next
		changed = append(changed, route.Prefix)
	}
	for _, prefix := range req.WithdrawnRoutePrefixes {
		if _, had := r.routes[prefix]; had {
			delete(r.routes, prefix)
			changed = append(changed, prefix)
		}
	}
	r.expectedEpoch = req.ToEpochIndex
	return changed, nil
}

// acceptRoute converts an advertised route into a routing table entry, or
// returns false when the route must not be used.
func (r *Receiver) acceptRoute(route ccp.Route) (*routing.Route, bool) {
	entry := &routing.Route{
		TargetPrefix: route.Prefix,
		NextHop:      r.peerID,
		Path:         route.Path,
		Auth:         route.Auth,
	}
	if entry.HasLoop(r.localAddress) {
		return nil, false
	}
	return entry, true
}

// RouteFor returns the route this peer currently advertises for the prefix.
func (r *Receiver) RouteFor(prefix ilp.AddressPrefix) (*routing.Route, bool) {
	route, ok := r.routes[prefix]
	return route, ok
}

// Prefixes returns all prefixes this peer currently advertises.
func (r *Receiver) Prefixes() []ilp.AddressPrefix {
	ps := make([]ilp.AddressPrefix, 0, len(r.routes))
	for p := range r.routes {
		ps = append(ps, p)
	}
	return ps
}

// Expired reports whether the peer's hold-down deadline has passed, i.e.
// every route from this peer must be withdrawn.
func (r *Receiver) Expired(now time.Time) bool {
	return !r.deadline.IsZero() && now.After(r.deadline)
}
