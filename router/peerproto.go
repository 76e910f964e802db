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

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ccp"
	"github.com/interledger/connector/pkg/ildcp"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/private/settlement"
)

// RouteProtocolHandler is the routing control plane's packet entry point.
type RouteProtocolHandler interface {
	HandleRouteControl(ctx context.Context, src accounts.ID, data []byte) ilp.Reply
	HandleRouteUpdate(ctx context.Context, src accounts.ID, data []byte) ilp.Reply
}

// PeerProtocolFilter terminates packets addressed to the reserved peer.*
// space: IL-DCP configuration requests, CCP route traffic and settlement
// messages. Everything else continues down the chain to the dispatcher.
type PeerProtocolFilter struct {
	localAddress ilp.Address
	routes       RouteProtocolHandler
	settlement   settlement.Service
}

// NewPeerProtocolFilter creates the filter. A nil routes handler disables
// CCP; a nil settlement service is replaced by settlement.Nop.
func NewPeerProtocolFilter(
	localAddress ilp.Address,
	routes RouteProtocolHandler,
	settle settlement.Service,
) *PeerProtocolFilter {
	if settle == nil {
		settle = settlement.Nop{}
	}
	return &PeerProtocolFilter{
		localAddress: localAddress,
		routes:       routes,
		settlement:   settle,
	}
}

func (f *PeerProtocolFilter) Name() string { return "peer_protocol" }

func (f *PeerProtocolFilter) Filter(
	ctx context.Context,
	src *accounts.Settings,
	pkt *ilp.Prepare,
	next Chain,
) (ilp.Reply, error) {
	if !ilp.AddressPrefix("peer.").StartsWith(pkt.Destination) {
		return next.Proceed(ctx, src, pkt)
	}
	if pkt.ExecutionCondition != ilp.PeerProtocolCondition {
		return ilp.NewReject(ilp.CodeBadRequest,
			"peer protocol packets must carry the well-known condition",
			f.localAddress), nil
	}
	switch pkt.Destination {
	case ildcp.Destination:
		return f.handleConfigRequest(ctx, src), nil
	case ccp.RouteControlDestination:
		if f.routes == nil {
			return ilp.NewReject(ilp.CodeBadRequest,
				"route broadcasting is disabled", f.localAddress), nil
		}
		return f.routes.HandleRouteControl(ctx, src.ID, pkt.Data), nil
	case ccp.RouteUpdateDestination:
		if f.routes == nil {
			return ilp.NewReject(ilp.CodeBadRequest,
				"route broadcasting is disabled", f.localAddress), nil
		}
		return f.routes.HandleRouteUpdate(ctx, src.ID, pkt.Data), nil
	case settlementDestination:
		data, err := f.settlement.HandleMessage(ctx, src.ID, pkt.Data)
		if err != nil {
			log.FromCtx(ctx).Debug("Settlement message failed",
				"account", src.ID, "err", err)
			return ilp.NewReject(ilp.CodeBadRequest,
				"settlement message refused", f.localAddress), nil
		}
		return &ilp.Fulfill{
			Fulfillment: ilp.PeerProtocolFulfillment,
			Data:        data,
		}, nil
	}
	return ilp.NewReject(ilp.CodeUnreachable,
		"unknown peer protocol", f.localAddress), nil
}

const settlementDestination ilp.Address = "peer.settle"

// handleConfigRequest serves IL-DCP: a child account asks for its assigned
// address and asset denomination.
func (f *PeerProtocolFilter) handleConfigRequest(
	ctx context.Context,
	src *accounts.Settings,
) ilp.Reply {
	if src.Relationship != accounts.Child {
		return ilp.NewReject(ilp.CodeBadRequest,
			"only child accounts are configured via IL-DCP", f.localAddress)
	}
	address := ilp.Address(string(f.localAddress) + ilp.Separator + string(src.ID))
	log.FromCtx(ctx).Debug("Serving IL-DCP config",
		"account", src.ID, "address", address)
	return ildcp.NewResponseFulfill(&ildcp.Response{
		ClientAddress: address,
		AssetScale:    src.AssetScale,
		AssetCode:     src.AssetCode,
	})
}
