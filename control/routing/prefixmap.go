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
	"github.com/interledger/connector/pkg/ilp"
)

// PrefixMap is a longest-prefix-match index from ILP address prefixes to
// routes. It is a pure data structure and not safe for concurrent use; the
// Table provides the locking.
//
// Matching is case-sensitive and segment-aligned: "g.foo." never matches
// "g.foobar". The global prefix "g." (or the root of any other allocation
// scheme) acts as the default route when registered.
type PrefixMap struct {
	routes map[ilp.AddressPrefix][]*Route
}

// NewPrefixMap returns an empty prefix map.
func NewPrefixMap() *PrefixMap {
	return &PrefixMap{routes: make(map[ilp.AddressPrefix][]*Route)}
}

// Add inserts the route. It returns false without modifying the map if an
// identity-equivalent route already exists.
func (m *PrefixMap) Add(r *Route) bool {
	existing := m.routes[r.TargetPrefix]
	for _, e := range existing {
		if e.SameIdentity(r) {
			return false
		}
	}
	m.routes[r.TargetPrefix] = append(existing, r)
	return true
}

// Remove deletes the identity-equivalent route, if present.
func (m *PrefixMap) Remove(r *Route) bool {
	existing := m.routes[r.TargetPrefix]
	for i, e := range existing {
		if e.SameIdentity(r) {
			m.routes[r.TargetPrefix] = append(existing[:i], existing[i+1:]...)
			if len(m.routes[r.TargetPrefix]) == 0 {
				delete(m.routes, r.TargetPrefix)
			}
			return true
		}
	}
	return false
}

// RemovePrefix deletes every route registered under the exact prefix and
// returns the removed routes.
func (m *PrefixMap) RemovePrefix(prefix ilp.AddressPrefix) []*Route {
	removed := m.routes[prefix]
	delete(m.routes, prefix)
	return removed
}

// RoutesFor returns the routes registered under the exact prefix.
func (m *PrefixMap) RoutesFor(prefix ilp.AddressPrefix) []*Route {
	return m.routes[prefix]
}

// FindNextHopRoutes returns every route whose target prefix covers the
// destination, across all prefix lengths. Callers that need a single route
// must rank the result themselves (see PaymentRouter).
func (m *PrefixMap) FindNextHopRoutes(destination ilp.Address) []*Route {
	var result []*Route
	m.visitAncestors(destination.Prefix(), func(routes []*Route) {
		result = append(result, routes...)
	})
	return result
}

// FindLongestPrefix returns the most specific registered prefix that covers
// the input, or false if none does.
func (m *PrefixMap) FindLongestPrefix(prefix ilp.AddressPrefix) (ilp.AddressPrefix, bool) {
	for p, ok := prefix, true; ok; p, ok = p.Parent() {
		if _, found := m.routes[p]; found {
			return p, true
		}
	}
	return "", false
}

// NumKeys returns the number of distinct prefixes in the map.
func (m *PrefixMap) NumKeys() int {
	return len(m.routes)
}

// Prefixes calls fn for every registered prefix. fn must not mutate the map.
func (m *PrefixMap) Prefixes(fn func(ilp.AddressPrefix)) {
	for p := range m.routes {
		fn(p)
	}
}

// visitAncestors walks from the given prefix up to the allocation-scheme
// root, invoking fn for every registered ancestor, most specific first.
func (m *PrefixMap) visitAncestors(prefix ilp.AddressPrefix, fn func([]*Route)) {
	for p, ok := prefix, true; ok; p, ok = p.Parent() {
		if routes, found := m.routes[p]; found {
			fn(routes)
		}
	}
}
