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

// Package routing implements the connector's forwarding state: a
// longest-prefix-match index from ILP address prefixes to routes, an
// epoch-versioned routing table with an append-only update log, and the
// payment router that resolves a packet destination to a next-hop account.
package routing

import (
	"regexp"
	"time"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/private/serrors"
)

// Route is one entry of a routing table: packets for TargetPrefix go to the
// NextHop account. Identity is the (TargetPrefix, SourcePrefixFilter,
// NextHop) triple; adding an identical route twice is a no-op.
type Route struct {
	TargetPrefix ilp.AddressPrefix
	NextHop      accounts.ID

	// Path holds the addresses of the connectors the route advertisement has
	// traversed, most recent speaker first. It doubles as the loop marker: a
	// node never accepts a route whose path contains its own address.
	Path []ilp.Address

	// SourcePrefixFilter restricts which source prefixes may use this route.
	// Empty means unrestricted.
	SourcePrefixFilter string

	// Auth is the chained authentication hash carried with the
	// advertisement.
	Auth [32]byte

	// ExpiresAt is the time after which a received route must no longer be
	// used. The zero value means the route does not expire.
	ExpiresAt time.Time

	compiledFilter *regexp.Regexp
}

// Compile validates and compiles the source prefix filter. It must be
// called (typically by the table) before AllowsSource.
func (r *Route) Compile() error {
	if r.SourcePrefixFilter == "" {
		r.compiledFilter = nil
		return nil
	}
	re, err := regexp.Compile("^(?:" + r.SourcePrefixFilter + ")$")
	if err != nil {
		return serrors.Wrap("compiling source prefix filter", err,
			"filter", r.SourcePrefixFilter, "prefix", r.TargetPrefix)
	}
	r.compiledFilter = re
	return nil
}

// AllowsSource reports whether the given source prefix may use this route.
// An empty source prefix only matches unrestricted routes.
func (r *Route) AllowsSource(source ilp.AddressPrefix) bool {
	if r.compiledFilter == nil {
		return true
	}
	return r.compiledFilter.MatchString(string(source))
}

// SameIdentity reports whether two routes are identity-equivalent for the
// purpose of idempotent registration and removal.
func (r *Route) SameIdentity(other *Route) bool {
	return r.TargetPrefix == other.TargetPrefix &&
		r.SourcePrefixFilter == other.SourcePrefixFilter &&
		r.NextHop == other.NextHop
}

// HasLoop reports whether the route's path contains the given address.
func (r *Route) HasLoop(self ilp.Address) bool {
	for _, hop := range r.Path {
		if hop == self {
			return true
		}
	}
	return false
}

// Expired reports whether the route has expired at the given time.
func (r *Route) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Clone returns a deep copy of the route.
func (r *Route) Clone() *Route {
	c := *r
	c.Path = append([]ilp.Address(nil), r.Path...)
	return &c
}

// Update is one entry of a routing table's append-only update log. A nil
// Route means the prefix was withdrawn at that epoch.
type Update struct {
	Prefix ilp.AddressPrefix
	Epoch  uint64
	Route  *Route
}
