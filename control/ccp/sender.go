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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/interledger/connector/control/routing"
	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ccp"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/private/periodic"
)

// RelationshipLookup resolves the relationship of the account a route was
// learned from. The second return is false when the account is unknown.
type RelationshipLookup func(accounts.ID) (accounts.Relationship, bool)

// SenderConfig bundles the per-peer sender parameters.
type SenderConfig struct {
	PeerID           accounts.ID
	PeerRelationship accounts.Relationship
	LocalAddress     ilp.Address
	// Interval between broadcast ticks in MODE_SYNC.
	Interval time.Duration
	// MaxEpochsPerBatch caps the update log slice of a single transmission.
	MaxEpochsPerBatch uint64
	// HoldDownTime advertised to the peer.
	HoldDownTime time.Duration
}

// Sender periodically transmits the outgoing routing table diff to one
// peer. It is a state machine driven by inbound RouteControlRequests:
// MODE_IDLE (no broadcasting) and MODE_SYNC (periodic broadcasting).
type Sender struct {
	cfg           SenderConfig
	table         *routing.Table
	packets       PacketSender
	relationships RelationshipLookup
	logger        log.Logger

	mtx            sync.Mutex
	mode           ccp.Mode
	lastKnownID    uuid.UUID
	lastKnownEpoch uint64
	runner         *periodic.Runner
}

// NewSender creates an idle sender over the given outgoing routing table.
func NewSender(
	cfg SenderConfig,
	table *routing.Table,
	packets PacketSender,
	relationships RelationshipLookup,
	logger log.Logger,
) *Sender {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxEpochsPerBatch == 0 {
		cfg.MaxEpochsPerBatch = 50
	}
	if cfg.HoldDownTime <= 0 {
		cfg.HoldDownTime = 45 * time.Second
	}
	return &Sender{
		cfg:           cfg,
		table:         table,
		packets:       packets,
		relationships: relationships,
		logger:        logger.New("peer", cfg.PeerID),
	}
}

// HandleRouteControl transitions the sender according to the peer's request.
// Entering MODE_SYNC schedules the periodic broadcast task if none is
// scheduled yet; entering MODE_IDLE cancels it, letting an in-flight send
// complete.
func (s *Sender) HandleRouteControl(req *ccp.RouteControlRequest) {
	if req.Mode == ccp.ModeIdle {
		s.Stop()
		return
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if req.LastKnownRoutingTableID == s.table.ID() {
		s.lastKnownEpoch = req.LastKnownEpoch
	} else {
		// The peer knows a different (or no) table; start from scratch.
		s.lastKnownEpoch = 0
	}
	s.lastKnownID = s.table.ID()
	if s.mode != ccp.ModeSync {
		s.mode = ccp.ModeSync
		s.runner = periodic.Start(senderTask{s}, s.cfg.Interval, s.cfg.Interval)
		s.runner.TriggerRun()
		s.logger.Debug("Route broadcasting started", "from_epoch", s.lastKnownEpoch)
	}
}

// Stop cancels the broadcast task. An in-flight send is allowed to
// complete; Stop blocks until it has. Safe to call in any mode.
func (s *Sender) Stop() {
	s.mtx.Lock()
	if s.mode == ccp.ModeIdle {
		s.mtx.Unlock()
		return
	}
	s.mode = ccp.ModeIdle
	runner := s.runner
	s.runner = nil
	// Release the lock before stopping: the runner blocks until an
	// in-flight send returns, and the send path takes the lock to advance
	// the epoch cursor.
	s.mtx.Unlock()
	if runner != nil {
		runner.Stop()
	}
	s.logger.Debug("Route broadcasting stopped")
}

// Mode returns the current broadcast mode.
func (s *Sender) Mode() ccp.Mode {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.mode
}

// senderTask adapts the sender to the periodic runner.
type senderTask struct {
	s *Sender
}

func (t senderTask) Run(ctx context.Context) {
	t.s.sendUpdate(ctx)
}

func (t senderTask) Name() string {
	return "ccp_sender_" + string(t.s.cfg.PeerID)
}

// sendUpdate computes and transmits one batch. On success the epoch cursor
// advances optimistically to the batch's upper bound; the protocol needs no
// explicit ack since epochs are monotonic and application is idempotent. On
// failure the cursor stays, and the next tick retries the same range.
func (s *Sender) sendUpdate(ctx context.Context) {
	s.mtx.Lock()
	if s.lastKnownID != s.table.ID() {
		// Table was reset since the last send; the old epochs are void.
		s.lastKnownID = s.table.ID()
		s.lastKnownEpoch = 0
	}
	from := s.lastKnownEpoch
	s.mtx.Unlock()

	current := s.table.CurrentEpoch()
	to := min(from+s.cfg.MaxEpochsPerBatch, current)
	if to < from {
		// Log shrank unexpectedly; resync from the beginning.
		from, to = 0, current
	}

	req := &ccp.RouteUpdateRequest{
		Speaker:           s.cfg.LocalAddress,
		RoutingTableID:    s.table.ID(),
		CurrentEpochIndex: current,
		FromEpochIndex:    from,
		ToEpochIndex:      to,
		HoldDownTime:      s.cfg.HoldDownTime,
	}
	for _, update := range dedupByPrefix(s.table.UpdatesInRange(from, to)) {
		route := update.Route
		if route != nil && !s.exportable(route) {
			route = nil
		}
		if route == nil {
			req.WithdrawnRoutePrefixes = append(req.WithdrawnRoutePrefixes, update.Prefix)
			continue
		}
		req.NewRoutes = append(req.NewRoutes, ccp.Route{
			Prefix: update.Prefix,
			Path:   route.Path,
			Auth:   route.Auth,
		})
	}

	reply, err := s.packets.SendToPeer(ctx, s.cfg.PeerID,
		ccp.NewRouteUpdatePrepare(req, time.Now().Add(s.cfg.Interval)))
	if err != nil {
		s.logger.Error("Route update transmission failed",
			"from", from, "to", to, "err", err)
		return
	}
	if rej, ok := reply.(*ilp.Reject); ok {
		s.logger.Error("Route update rejected",
			"from", from, "to", to, "code", rej.Code, "message", rej.Message)
		return
	}
	s.mtx.Lock()
	if s.lastKnownID == s.table.ID() && s.lastKnownEpoch == from {
		s.lastKnownEpoch = to
	}
	s.mtx.Unlock()
	s.logger.Debug("Route update sent",
		"from", from, "to", to,
		"routes", len(req.NewRoutes), "withdrawn", len(req.WithdrawnRoutePrefixes))
}

// exportable applies the route-export filters for this peer, in order:
// reflection, relationship, locally-originated single-hop child route.
// Filtered routes are transmitted as withdrawals.
func (s *Sender) exportable(route *routing.Route) bool {
	// Never advertise a route back to the peer that is its next hop.
	if route.NextHop == s.cfg.PeerID {
		return false
	}
	// Never offer transit to a parent on behalf of another peer or parent.
	if s.cfg.PeerRelationship == accounts.Parent {
		rel, ok := s.relationships(route.NextHop)
		if !ok || rel == accounts.Peer || rel == accounts.Parent {
			return false
		}
	}
	// A single-hop child route under our own address is implicitly
	// reachable through us; advertising it separately is redundant.
	if len(route.Path) <= 1 &&
		s.cfg.LocalAddress.Prefix().Covers(route.TargetPrefix) &&
		route.TargetPrefix != s.cfg.LocalAddress.Prefix() {
		return false
	}
	return true
}

// dedupByPrefix collapses multiple updates of the same prefix within a
// batch, keeping the latest.
func dedupByPrefix(updates []routing.Update) []routing.Update {
	latest := make(map[ilp.AddressPrefix]int, len(updates))
	out := updates[:0:0]
	for _, u := range updates {
		if i, ok := latest[u.Prefix]; ok {
			out[i] = u
			continue
		}
		latest[u.Prefix] = len(out)
		out = append(out, u)
	}
	return out
}
