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

	"github.com/interledger/connector/control/routing"
	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/private/link"
	"github.com/interledger/connector/private/settlement"
	"github.com/interledger/connector/private/storage/balance"
)

// AccountLookup provides read access to account settings.
type AccountLookup interface {
	GetAccount(ctx context.Context, id accounts.ID) (*accounts.Settings, bool)
}

// LinkResolver resolves the connected link for an account.
type LinkResolver interface {
	Get(id accounts.ID) (link.Link, bool)
}

// DispatchConfig bundles the dispatcher parameters.
type DispatchConfig struct {
	LocalAddress ilp.Address
	// MinMessageWindow is subtracted from the packet expiry on each hop,
	// reserving time for the replies to travel back. Default 1s.
	MinMessageWindow time.Duration
	// MaxHoldTime caps how long this connector is willing to have a packet
	// outstanding. Default 30s.
	MaxHoldTime time.Duration
}

// Dispatcher terminates the filter chain: it resolves the next hop through
// the payment router, rescales the amount into the next hop's asset scale,
// shrinks the expiry window, forwards the packet over the next hop's link
// and validates the returned fulfillment.
type Dispatcher struct {
	cfg      DispatchConfig
	router   *routing.PaymentRouter
	accounts AccountLookup
	links    LinkResolver
	tracker  balance.Tracker
	settle   settlement.Service
	logger   log.Logger
}

// NewDispatcher creates the terminal filter. The tracker may be nil when
// destination-side accounting is not wanted.
func NewDispatcher(
	cfg DispatchConfig,
	router *routing.PaymentRouter,
	lookup AccountLookup,
	links LinkResolver,
	tracker balance.Tracker,
	settle settlement.Service,
	logger log.Logger,
) *Dispatcher {
	if cfg.MinMessageWindow <= 0 {
		cfg.MinMessageWindow = time.Second
	}
	if cfg.MaxHoldTime <= 0 {
		cfg.MaxHoldTime = 30 * time.Second
	}
	if settle == nil {
		settle = settlement.Nop{}
	}
	return &Dispatcher{
		cfg:      cfg,
		router:   router,
		accounts: lookup,
		links:    links,
		tracker:  tracker,
		settle:   settle,
		logger:   logger,
	}
}

func (d *Dispatcher) Name() string { return "dispatch" }

func (d *Dispatcher) Filter(
	ctx context.Context,
	src *accounts.Settings,
	pkt *ilp.Prepare,
	next Chain,
) (reply ilp.Reply, err error) {
	route, ok := d.nextHop(src, pkt.Destination)
	if !ok {
		return ilp.NewReject(ilp.CodeUnreachable,
			"no route to destination", d.cfg.LocalAddress), nil
	}
	if route.NextHop == src.ID {
		// Sending the packet back where it came from can only loop.
		return ilp.NewReject(ilp.CodeUnreachable,
			"refusing to route the packet back to its source", d.cfg.LocalAddress), nil
	}
	dst, ok := d.accounts.GetAccount(ctx, route.NextHop)
	if !ok {
		return ilp.NewReject(ilp.CodeInternalError,
			"next hop account is not configured", d.cfg.LocalAddress), nil
	}

	outAmount, ok := rescaleAmount(pkt.Amount, src.AssetScale, dst.AssetScale)
	if !ok {
		return ilp.NewReject(ilp.CodeAmountTooLarge,
			"amount overflows the next hop's asset scale", d.cfg.LocalAddress), nil
	}
	outExpiry, ok := d.shrinkExpiry(pkt.ExpiresAt)
	if !ok {
		return ilp.NewReject(ilp.CodeInsufficientTimeout,
			"not enough time left to forward the packet", d.cfg.LocalAddress), nil
	}

	l, ok := d.links.Get(route.NextHop)
	if !ok {
		return ilp.NewReject(ilp.CodePeerUnreachable,
			"next hop link is not connected", d.cfg.LocalAddress), nil
	}

	out := &ilp.Prepare{
		Destination:        pkt.Destination,
		Amount:             outAmount,
		ExecutionCondition: pkt.ExecutionCondition,
		ExpiresAt:          outExpiry,
		Data:               pkt.Data,
	}
	reply, err = d.send(ctx, l, route.NextHop, out)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			// The expiry filter upstream turns this into R00.
			return nil, err
		}
		d.logger.Info("Forwarding packet failed",
			"next_hop", route.NextHop, "destination", pkt.Destination, "err", err)
		return ilp.NewReject(ilp.CodeInternalError,
			"failed to forward the packet", d.cfg.LocalAddress), nil
	}

	if ctx.Err() != nil || !time.Now().Before(pkt.ExpiresAt) {
		// The attempt was abandoned upstream the moment the packet expired; a
		// reply that straggles in afterwards must not be applied, or the next
		// hop would be credited for a transfer the source was already told
		// timed out.
		d.logger.Info("Discarding reply that arrived after the packet expired",
			"next_hop", route.NextHop, "destination", pkt.Destination)
		return ilp.NewReject(ilp.CodeTransferTimedOut,
			"reply arrived after the packet expired", d.cfg.LocalAddress), nil
	}

	if fulfill, ok := reply.(*ilp.Fulfill); ok {
		if !fulfill.Validate(pkt.ExecutionCondition) {
			d.logger.Info("Next hop returned an invalid fulfillment",
				"next_hop", route.NextHop, "destination", pkt.Destination)
			return ilp.NewReject(ilp.CodeWrongCondition,
				"fulfillment does not hash to the execution condition",
				d.cfg.LocalAddress), nil
		}
		d.creditDestination(ctx, route.NextHop, outAmount)
	}
	return reply, nil
}

// nextHop resolves the best route, applying the source prefix filters with
// the source account's address when it is known.
func (d *Dispatcher) nextHop(
	src *accounts.Settings,
	destination ilp.Address,
) (*routing.Route, bool) {
	if src.ILPAddress == "" {
		return d.router.FindBestNextHop(destination)
	}
	return d.router.FindBestNextHopWithSource(destination, src.ILPAddress.Prefix())
}

// send guards against panicking link implementations; a panic must fail the
// one packet, not the switch.
func (d *Dispatcher) send(
	ctx context.Context,
	l link.Link,
	nextHop accounts.ID,
	pkt *ilp.Prepare,
) (reply ilp.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Link panicked while sending",
				"next_hop", nextHop, "panic", r)
			reply = ilp.NewReject(ilp.CodeInternalError,
				"internal error while forwarding", d.cfg.LocalAddress)
			err = nil
		}
	}()
	return l.SendPacket(ctx, pkt)
}

func (d *Dispatcher) creditDestination(
	ctx context.Context,
	id accounts.ID,
	amount uint64,
) {
	if d.tracker == nil || amount == 0 {
		return
	}
	newBalance, err := d.tracker.Credit(ctx, id, amount)
	if err != nil {
		d.logger.Error("FAILED TO CREDIT NEXT HOP after fulfill, account is under-credited",
			"account", id, "amount", amount, "err", err)
		return
	}
	// Best effort: the engine settles on its own thresholds, a missed
	// notification is caught by the next one.
	if err := d.settle.NotifyBalance(ctx, id, newBalance); err != nil {
		d.logger.Debug("Settlement engine balance notification failed",
			"account", id, "err", err)
	}
}

// shrinkExpiry moves the expiry closer by the message window and caps the
// total hold time. The forwarded packet must still have a positive window.
func (d *Dispatcher) shrinkExpiry(expiry time.Time) (time.Time, bool) {
	out := expiry.Add(-d.cfg.MinMessageWindow)
	if maxHold := time.Now().Add(d.cfg.MaxHoldTime); out.After(maxHold) {
		out = maxHold
	}
	if !out.After(time.Now()) {
		return time.Time{}, false
	}
	return out, true
}

// rescaleAmount converts an amount between asset scales, truncating toward
// zero when precision shrinks. The boolean is false on overflow.
func rescaleAmount(amount uint64, from, to uint8) (uint64, bool) {
	if from == to {
		return amount, true
	}
	if to < from {
		// uint64 holds fewer than 20 decimal digits; any larger scale gap
		// truncates everything away.
		if from-to >= 20 {
			return 0, true
		}
		div := uint64(1)
		for i := to; i < from; i++ {
			div *= 10
		}
		return amount / div, true
	}
	out := amount
	for i := from; i < to; i++ {
		if out > (1<<64-1)/10 {
			return 0, amount == 0
		}
		out *= 10
	}
	return out, true
}
