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

// Package router implements the connector's packet switch: an inbound
// Prepare passes through a fixed chain of filters that police, account for
// and finally dispatch it to the next hop's link, and the resulting Fulfill
// or Reject travels back through the chain.
package router

import (
	"context"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/private/serrors"
)

// Chain continues processing with the remaining filters. The terminal
// element of every chain is the dispatcher.
type Chain interface {
	Proceed(ctx context.Context, src *accounts.Settings, pkt *ilp.Prepare) (ilp.Reply, error)
}

// Filter inspects a packet on the way in and its reply on the way out. A
// filter either returns a reply itself (short-circuiting the chain) or
// delegates to next. The error return is reserved for faults that cannot be
// expressed as a Reject; the switch converts them at the boundary.
type Filter interface {
	Name() string
	Filter(ctx context.Context, src *accounts.Settings, pkt *ilp.Prepare, next Chain) (ilp.Reply, error)
}

type chain struct {
	filters []Filter
	pos     int
}

func (c chain) Proceed(
	ctx context.Context,
	src *accounts.Settings,
	pkt *ilp.Prepare,
) (ilp.Reply, error) {
	if c.pos >= len(c.filters) {
		return nil, serrors.New("filter chain has no terminal dispatcher")
	}
	f := c.filters[c.pos]
	return f.Filter(ctx, src, pkt, chain{filters: c.filters, pos: c.pos + 1})
}

// Run sends the packet through the given filters.
func Run(
	ctx context.Context,
	filters []Filter,
	src *accounts.Settings,
	pkt *ilp.Prepare,
) (ilp.Reply, error) {
	return chain{filters: filters}.Proceed(ctx, src, pkt)
}
