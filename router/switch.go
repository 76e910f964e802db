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
	"github.com/interledger/connector/private/settlement"
	"github.com/interledger/connector/private/storage/balance"
)

// SwitchConfig bundles everything the packet switch needs.
type SwitchConfig struct {
	LocalAddress ilp.Address
	// AllowedDestinations restricts which destination prefixes are routed.
	// Empty means no restriction.
	AllowedDestinations []ilp.AddressPrefix
	MinMessageWindow    time.Duration
	MaxHoldTime         time.Duration
}

// Switch is the packet-switching core: it accepts an inbound Prepare on
// behalf of a source account and produces the Fulfill or Reject to send
// back. The filter order is fixed; every packet passes the guards, the
// balance reservation and the peer-protocol demux before dispatch.
type Switch struct {
	localAddress ilp.Address
	accounts     AccountLookup
	filters      []Filter
	logger       log.Logger
}

// NewSwitch assembles the filter chain.
func NewSwitch(
	cfg SwitchConfig,
	lookup AccountLookup,
	links LinkResolver,
	paymentRouter *routing.PaymentRouter,
	tracker balance.Tracker,
	routes RouteProtocolHandler,
	settle settlement.Service,
	metrics *Metrics,
	logger log.Logger,
) *Switch {
	return &Switch{
		localAddress: cfg.LocalAddress,
		accounts:     lookup,
		logger:       logger,
		filters: []Filter{
			NewAllowListFilter(cfg.LocalAddress, cfg.AllowedDestinations),
			NewMaxPacketAmountFilter(cfg.LocalAddress),
			NewRateLimitFilter(cfg.LocalAddress),
			NewExpiryFilter(cfg.LocalAddress),
			NewBalanceFilter(cfg.LocalAddress, tracker, logger),
			NewPeerProtocolFilter(cfg.LocalAddress, routes, settle),
			NewTelemetryFilter(metrics),
			NewDispatcher(DispatchConfig{
				LocalAddress:     cfg.LocalAddress,
				MinMessageWindow: cfg.MinMessageWindow,
				MaxHoldTime:      cfg.MaxHoldTime,
			}, paymentRouter, lookup, links, tracker, settle, logger),
		},
	}
}

// Route switches one packet arriving from the given source account. The
// returned Reply is always non-nil; faults that no filter could classify
// come back as a T00 reject.
func (s *Switch) Route(
	ctx context.Context,
	src accounts.ID,
	pkt *ilp.Prepare,
) ilp.Reply {
	settings, ok := s.accounts.GetAccount(ctx, src)
	if !ok {
		return ilp.NewReject(ilp.CodeBadRequest,
			"unknown source account", s.localAddress)
	}
	reply, err := Run(ctx, s.filters, settings, pkt)
	if err != nil {
		s.logger.Error("Packet failed outside the reject taxonomy",
			"account", src, "destination", pkt.Destination, "err", err)
		return ilp.NewReject(ilp.CodeInternalError,
			"internal error", s.localAddress)
	}
	if reply == nil {
		return ilp.NewReject(ilp.CodeInternalError,
			"no reply produced", s.localAddress)
	}
	return reply
}
