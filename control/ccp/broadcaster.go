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
	"crypto/sha256"
	"errors"
	"sync"
	"time"

	"github.com/interledger/connector/control/routing"
	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ccp"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/pkg/metrics"
	"github.com/interledger/connector/pkg/private/serrors"
	"github.com/interledger/connector/private/periodic"
)

// AccountLookup provides read access to account settings.
type AccountLookup interface {
	GetAccount(ctx context.Context, id accounts.ID) (*accounts.Settings, bool)
}

// StaticRoute is an operator-configured route. Static routes take precedence
// over everything learned from peers.
type StaticRoute struct {
	Prefix  ilp.AddressPrefix
	NextHop accounts.ID
}

// Config bundles the broadcaster parameters.
type Config struct {
	// LocalAddress is this connector's own ILP address.
	LocalAddress ilp.Address
	// PingAccount is the loopback account id packets for our own address
	// resolve to.
	PingAccount accounts.ID
	// BroadcastInterval is the period of each peer's sender.
	BroadcastInterval time.Duration
	// RouteExpiry is how long peer routes survive without a route update;
	// it is also the hold-down time advertised to peers.
	RouteExpiry time.Duration
	// MaxEpochsPerBatch caps a single route update transmission.
	MaxEpochsPerBatch uint64
	// RoutingSecret seeds the auth values of locally originated routes.
	RoutingSecret []byte
	// StaticRoutes are installed at start with top precedence.
	StaticRoutes []StaticRoute
}

func (cfg *Config) initDefaults() {
	if cfg.PingAccount == "" {
		cfg.PingAccount = "ping"
	}
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = 30 * time.Second
	}
	if cfg.RouteExpiry <= 0 {
		cfg.RouteExpiry = 45 * time.Second
	}
	if cfg.MaxEpochsPerBatch == 0 {
		cfg.MaxEpochsPerBatch = 50
	}
}

// Metrics used by the broadcaster. Nil values are valid and mean "don't
// record".
type Metrics struct {
	TrackedPeers         metrics.Gauge
	RouteUpdatesReceived metrics.Counter
	LocalRoutes          metrics.Gauge
}

// Peer is one routable account: a sender/receiver pair created when the
// account's link connects and destroyed on disconnect.
type Peer struct {
	id           accounts.ID
	relationship accounts.Relationship
	sender       *Sender
	receiver     *Receiver
}

// Broadcaster owns the Peer lifecycle and re-derives the local forwarding
// table and the outgoing (exported) table whenever any prefix's best
// candidate route changes.
//
// All route recomputation runs under one lock: a best-route decision for a
// prefix reads every peer's advertisements, so per-peer locking would buy
// concurrency only between non-overlapping prefixes at a significant
// complexity cost. Packet forwarding never takes this lock; it reads the
// routing tables, which have their own read locks.
type Broadcaster struct {
	cfg      Config
	accounts AccountLookup
	packets  PacketSender
	local    *routing.Table
	outgoing *routing.Table
	logger   log.Logger
	metrics  Metrics

	mtx         sync.Mutex
	peers       map[accounts.ID]*Peer
	localRoutes map[ilp.AddressPrefix]*routing.Route
	static      map[ilp.AddressPrefix]accounts.ID
	sweeper     *periodic.Runner
}

// NewBroadcaster creates a broadcaster over the given tables. Call Start to
// install the static and own-address routes and begin expiry sweeping.
func NewBroadcaster(
	cfg Config,
	lookup AccountLookup,
	packets PacketSender,
	local, outgoing *routing.Table,
	logger log.Logger,
	m Metrics,
) *Broadcaster {
	cfg.initDefaults()
	b := &Broadcaster{
		cfg:         cfg,
		accounts:    lookup,
		packets:     packets,
		local:       local,
		outgoing:    outgoing,
		logger:      logger,
		metrics:     m,
		peers:       make(map[accounts.ID]*Peer),
		localRoutes: make(map[ilp.AddressPrefix]*routing.Route),
		static:      make(map[ilp.AddressPrefix]accounts.ID),
	}
	for _, sr := range cfg.StaticRoutes {
		b.static[sr.Prefix] = sr.NextHop
	}
	return b
}

// Start installs the operator-configured and own-address routes and starts
// the expiry sweeper.
func (b *Broadcaster) Start() {
	b.mtx.Lock()
	ownPrefix := b.cfg.LocalAddress.Prefix()
	b.localRoutes[ownPrefix] = &routing.Route{
		TargetPrefix: ownPrefix,
		NextHop:      b.cfg.PingAccount,
		Path:         []ilp.Address{b.cfg.LocalAddress},
		Auth:         b.authFor(ownPrefix),
	}
	b.updatePrefixLocked(ownPrefix)
	for prefix := range b.static {
		b.updatePrefixLocked(prefix)
	}
	b.mtx.Unlock()

	b.sweeper = periodic.Start(sweeperTask{b},
		b.cfg.RouteExpiry/2, b.cfg.RouteExpiry)
}

// Close stops the sweeper and every peer's sender. In-flight sends complete.
func (b *Broadcaster) Close() {
	if b.sweeper != nil {
		b.sweeper.Kill()
	}
	b.mtx.Lock()
	peers := make([]*Peer, 0, len(b.peers))
	for _, p := range b.peers {
		peers = append(peers, p)
	}
	b.mtx.Unlock()
	for _, p := range peers {
		if p.sender != nil {
			p.sender.Stop()
		}
	}
}

// TrackAccount registers an account as routable, creating its sender and
// receiver as permitted by the account settings. For child accounts a local
// route for the child's assigned address is originated. Typically invoked
// when the account's link connects.
func (b *Broadcaster) TrackAccount(ctx context.Context, id accounts.ID) error {
	settings, ok := b.accounts.GetAccount(ctx, id)
	if !ok {
		return serrors.New("cannot track unknown account", "account", id)
	}
	b.mtx.Lock()
	if _, exists := b.peers[id]; exists {
		b.mtx.Unlock()
		return nil
	}
	peer := &Peer{id: id, relationship: settings.Relationship}
	if settings.SendRoutes {
		peer.sender = NewSender(SenderConfig{
			PeerID:            id,
			PeerRelationship:  settings.Relationship,
			LocalAddress:      b.cfg.LocalAddress,
			Interval:          b.cfg.BroadcastInterval,
			MaxEpochsPerBatch: b.cfg.MaxEpochsPerBatch,
			HoldDownTime:      b.cfg.RouteExpiry,
		}, b.outgoing, b.packets, b.relationshipOf, b.logger)
	}
	if settings.ReceiveRoutes {
		peer.receiver = NewReceiver(id, b.cfg.LocalAddress, b.packets)
	}
	b.peers[id] = peer
	if settings.Relationship == accounts.Child {
		prefix := b.childPrefix(id)
		b.localRoutes[prefix] = &routing.Route{
			TargetPrefix: prefix,
			NextHop:      id,
			Path:         []ilp.Address{b.cfg.LocalAddress},
			Auth:         b.authFor(prefix),
		}
		b.updatePrefixLocked(prefix)
	}
	metrics.GaugeSet(b.metrics.TrackedPeers, float64(len(b.peers)))
	receiver := peer.receiver
	var syncReq *ccp.RouteControlRequest
	if receiver != nil {
		syncReq = receiver.PrepareControl(ccp.ModeSync)
	}
	b.mtx.Unlock()

	b.logger.Info("Tracking routable account",
		"account", id, "relationship", settings.Relationship)
	if receiver != nil {
		if err := receiver.SendControl(ctx, syncReq); err != nil {
			// The peer may simply not be up yet; routes will follow once it
			// requests or delivers an update.
			b.logger.Info("Initial route sync request failed", "account", id, "err", err)
		}
	}
	return nil
}

// UntrackAccount withdraws everything related to the account and destroys
// its peer state. Typically invoked on link disconnect.
func (b *Broadcaster) UntrackAccount(id accounts.ID) {
	b.mtx.Lock()
	peer, ok := b.peers[id]
	if !ok {
		b.mtx.Unlock()
		return
	}
	delete(b.peers, id)
	childPrefix := b.childPrefix(id)
	if _, isLocal := b.localRoutes[childPrefix]; isLocal {
		delete(b.localRoutes, childPrefix)
		b.updatePrefixLocked(childPrefix)
	}
	if peer.receiver != nil {
		for _, prefix := range peer.receiver.Prefixes() {
			b.updatePrefixLocked(prefix)
		}
	}
	metrics.GaugeSet(b.metrics.TrackedPeers, float64(len(b.peers)))
	b.mtx.Unlock()

	if peer.sender != nil {
		peer.sender.Stop()
	}
	b.logger.Info("Untracked account", "account", id)
}

// HandleRouteControl processes an inbound peer.route.control packet from
// the given account and returns the protocol reply.
func (b *Broadcaster) HandleRouteControl(
	ctx context.Context,
	src accounts.ID,
	data []byte,
) ilp.Reply {
	b.mtx.Lock()
	peer, ok := b.peers[src]
	b.mtx.Unlock()
	if !ok || peer.sender == nil {
		return ilp.NewReject(ilp.CodeBadRequest,
			"CCP sending is not enabled for this account", b.cfg.LocalAddress)
	}
	req, err := ccp.DecodeRouteControlRequest(data)
	if err != nil {
		log.FromCtx(ctx).Debug("Malformed route control request",
			"account", src, "err", err)
		return ilp.NewReject(ilp.CodeBadRequest,
			"malformed route control request", b.cfg.LocalAddress)
	}
	peer.sender.HandleRouteControl(req)
	return &ilp.Fulfill{Fulfillment: ilp.PeerProtocolFulfillment}
}

// HandleRouteUpdate processes an inbound peer.route.update packet from the
// given account, recomputes the best route for every touched prefix, and
// returns the protocol reply.
func (b *Broadcaster) HandleRouteUpdate(
	ctx context.Context,
	src accounts.ID,
	data []byte,
) ilp.Reply {
	req, err := ccp.DecodeRouteUpdateRequest(data)
	if err != nil {
		log.FromCtx(ctx).Debug("Malformed route update request",
			"account", src, "err", err)
		return ilp.NewReject(ilp.CodeBadRequest,
			"malformed route update request", b.cfg.LocalAddress)
	}

	b.mtx.Lock()
	peer, ok := b.peers[src]
	if !ok || peer.receiver == nil {
		b.mtx.Unlock()
		return ilp.NewReject(ilp.CodeBadRequest,
			"CCP receiving is not enabled for this account", b.cfg.LocalAddress)
	}
	changed, err := peer.receiver.HandleRouteUpdate(ctx, req)
	if err != nil {
		receiver := peer.receiver
		var resync *ccp.RouteControlRequest
		if errors.Is(err, ErrEpochGap) {
			resync = receiver.PrepareControl(ccp.ModeSync)
		}
		b.mtx.Unlock()
		if resync != nil {
			// Ask the peer to resend from our cursor. The round trip happens
			// without the lock so a slow peer cannot stall the others.
			if err := receiver.SendControl(ctx, resync); err != nil {
				log.FromCtx(ctx).Error("Requesting resync after epoch gap",
					"account", src, "err", err)
			}
		}
		return ilp.NewReject(ilp.CodeBadRequest, err.Error(), b.cfg.LocalAddress)
	}
	for _, prefix := range changed {
		b.updatePrefixLocked(prefix)
	}
	b.mtx.Unlock()

	metrics.CounterInc(b.metrics.RouteUpdatesReceived)
	log.FromCtx(ctx).Debug("Applied route update",
		"account", src, "changed_prefixes", len(changed))
	return &ilp.Fulfill{Fulfillment: ilp.PeerProtocolFulfillment}
}

// updatePrefixLocked recomputes the best candidate route for the prefix and
// republishes the local and outgoing tables if the winner changed.
//
// Candidate priority: a statically configured route whose target account
// exists, else a local (self-originated) route, else the best route among
// all peers' advertisements ranked by relationship weight, then path
// length, then account id.
func (b *Broadcaster) updatePrefixLocked(prefix ilp.AddressPrefix) {
	best := b.bestCandidateLocked(prefix)
	if !b.local.Replace(prefix, best) {
		return
	}
	metrics.GaugeSet(b.metrics.LocalRoutes, float64(b.local.NumKeys()))
	b.updateOutgoingLocked(prefix)
	// A change upstream can invalidate export decisions made for more
	// specific prefixes; re-derive every exported descendant.
	var descendants []ilp.AddressPrefix
	b.outgoing.Prefixes(func(p ilp.AddressPrefix) {
		if p != prefix && prefix.Covers(p) {
			descendants = append(descendants, p)
		}
	})
	for _, p := range descendants {
		b.updateOutgoingLocked(p)
	}
}

func (b *Broadcaster) bestCandidateLocked(prefix ilp.AddressPrefix) *routing.Route {
	if nextHop, ok := b.static[prefix]; ok {
		if _, exists := b.accounts.GetAccount(context.Background(), nextHop); exists {
			return &routing.Route{
				TargetPrefix: prefix,
				NextHop:      nextHop,
				Path:         []ilp.Address{b.cfg.LocalAddress},
				Auth:         b.authFor(prefix),
			}
		}
	}
	if route, ok := b.localRoutes[prefix]; ok {
		return route
	}
	var best *routing.Route
	var bestPeer *Peer
	for _, peer := range b.peers {
		if peer.receiver == nil {
			continue
		}
		route, ok := peer.receiver.RouteFor(prefix)
		if !ok {
			continue
		}
		if best == nil || better(peer, route, bestPeer, best) {
			best, bestPeer = route, peer
		}
	}
	return best
}

// better ranks candidate (p, r) above the incumbent (bp, br): higher
// relationship weight first, then shorter path, then lexicographically
// smaller account id.
func better(p *Peer, r *routing.Route, bp *Peer, br *routing.Route) bool {
	if w, bw := p.relationship.Weight(), bp.relationship.Weight(); w != bw {
		return w > bw
	}
	if len(r.Path) != len(br.Path) {
		return len(r.Path) < len(br.Path)
	}
	return p.id < bp.id
}

// updateOutgoingLocked re-derives the exported route for the prefix from
// the local table: our own address is prepended as the new path head and
// the auth value is re-hashed. Reserved prefixes are never exported.
func (b *Broadcaster) updateOutgoingLocked(prefix ilp.AddressPrefix) {
	routes := b.local.RoutesFor(prefix)
	if len(routes) == 0 || !exportablePrefix(prefix) {
		b.outgoing.Replace(prefix, nil)
		return
	}
	route := routes[0]
	exported := &routing.Route{
		TargetPrefix: prefix,
		NextHop:      route.NextHop,
		Path:         append([]ilp.Address{b.cfg.LocalAddress}, route.Path...),
		Auth:         sha256.Sum256(route.Auth[:]),
	}
	if len(route.Path) > 0 && route.Path[0] == b.cfg.LocalAddress {
		// Locally originated; the path already starts with us.
		exported.Path = route.Path
		exported.Auth = route.Auth
	}
	b.outgoing.Replace(prefix, exported)
}

func exportablePrefix(prefix ilp.AddressPrefix) bool {
	return !ilp.AddressPrefix("peer.").Covers(prefix) &&
		!ilp.AddressPrefix("local.").Covers(prefix)
}

// relationshipOf resolves an account's relationship for route-export
// filtering, preferring tracked peer state over a settings lookup.
func (b *Broadcaster) relationshipOf(id accounts.ID) (accounts.Relationship, bool) {
	b.mtx.Lock()
	peer, ok := b.peers[id]
	b.mtx.Unlock()
	if ok {
		return peer.relationship, true
	}
	if settings, ok := b.accounts.GetAccount(context.Background(), id); ok {
		return settings.Relationship, true
	}
	return "", false
}

func (b *Broadcaster) childPrefix(id accounts.ID) ilp.AddressPrefix {
	return ilp.AddressPrefix(string(b.cfg.LocalAddress) + ilp.Separator + string(id) + ilp.Separator)
}

func (b *Broadcaster) authFor(prefix ilp.AddressPrefix) [32]byte {
	h := sha256.New()
	h.Write(b.cfg.RoutingSecret)
	h.Write([]byte(prefix))
	var auth [32]byte
	copy(auth[:], h.Sum(nil))
	return auth
}

// sweeperTask withdraws every route of peers whose hold-down deadline has
// passed without a fresh route update.
type sweeperTask struct {
	b *Broadcaster
}

func (t sweeperTask) Name() string {
	return "ccp_route_sweeper"
}

func (t sweeperTask) Run(ctx context.Context) {
	now := time.Now()
	b := t.b
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for _, peer := range b.peers {
		if peer.receiver == nil || !peer.receiver.Expired(now) {
			continue
		}
		prefixes := peer.receiver.Prefixes()
		if len(prefixes) == 0 {
			continue
		}
		log.FromCtx(ctx).Info("Peer routes expired, withdrawing",
			"peer", peer.id, "prefixes", len(prefixes))
		for _, prefix := range prefixes {
			delete(peer.receiver.routes, prefix)
			b.updatePrefixLocked(prefix)
		}
	}
}
