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

package routing

import (
	"math/rand"
	"sync"

	"github.com/interledger/connector/pkg/ilp"
)

// PaymentRouter resolves a packet's final destination to the best next-hop
// route in the local routing table.
//
// Among equally-eligible routes (same, longest target prefix, source filter
// satisfied) the router picks uniformly at random. This is deliberate load
// spreading across equally-good peers, not an attempt at determinism; tests
// inject a seeded source.
type PaymentRouter struct {
	table *Table

	mtx sync.Mutex
	rnd *rand.Rand
}

// RouterOption configures a PaymentRouter.
type RouterOption func(*PaymentRouter)

// WithRandSeed makes the tie-break deterministic for tests.
func WithRandSeed(seed int64) RouterOption {
	return func(r *PaymentRouter) {
		r.rnd = rand.New(rand.NewSource(seed))
	}
}

// NewPaymentRouter creates a router over the given local routing table.
func NewPaymentRouter(table *Table, opts ...RouterOption) *PaymentRouter {
	r := &PaymentRouter{
		table: table,
		rnd:   rand.New(rand.NewSource(rand.Int63())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EligibleRoutes returns every route covering the destination whose source
// prefix filter admits the given source prefix. An empty source prefix
// means "not declared" and disables filtering entirely.
func (r *PaymentRouter) EligibleRoutes(
	destination ilp.Address,
	source ilp.AddressPrefix,
) []*Route {
	all := r.table.FindNextHopRoutes(destination)
	if source == "" {
		return all
	}
	eligible := all[:0:0]
	for _, route := range all {
		if route.AllowsSource(source) {
			eligible = append(eligible, route)
		}
	}
	return eligible
}

// FindBestNextHop returns the best route for the destination without
// declaring a source prefix; source prefix filters are not applied.
func (r *PaymentRouter) FindBestNextHop(destination ilp.Address) (*Route, bool) {
	return r.FindBestNextHopWithSource(destination, "")
}

// FindBestNextHopWithSource returns the best route for the destination
// given the caller-declared source prefix: the routes with the most
// specific target prefix win, and ties are broken uniformly at random.
// The boolean is false when no route matches; the caller must treat this as
// non-retryable for the packet.
func (r *PaymentRouter) FindBestNextHopWithSource(
	destination ilp.Address,
	source ilp.AddressPrefix,
) (*Route, bool) {
	eligible := r.EligibleRoutes(destination, source)
	if len(eligible) == 0 {
		return nil, false
	}
	best := eligible[:0:0]
	bestLen := -1
	for _, route := range eligible {
		l := route.TargetPrefix.NumSegments()
		switch {
		case l > bestLen:
			best, bestLen = append(best[:0], route), l
		case l == bestLen:
			best = append(best, route)
		}
	}
	if len(best) == 1 {
		return best[0], true
	}
	r.mtx.Lock()
	pick := r.rnd.Intn(len(best))
	r.mtx.Unlock()
	return best[pick], true
}
