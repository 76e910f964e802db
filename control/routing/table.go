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
	"sync"

	"github.com/google/uuid"

	"github.com/interledger/connector/pkg/ilp"
)

// Table is a routing table with an identity, a monotonic epoch counter and
// an append-only update log for incremental synchronization.
//
// The epoch equals the number of applied changes: it starts at 0 and
// advances by exactly 1 per change, never decreasing. The log entry for the
// change that moved the epoch from n to n+1 is stored at index n with
// Epoch == n. Peers sync by slicing the log over [fromEpoch, toEpoch).
//
// A Table supports many concurrent readers and a single writer per call;
// all mutations are linearized by an internal lock.
type Table struct {
	mtx      sync.RWMutex
	id       uuid.UUID
	prefixes *PrefixMap
	log      []Update
}

// NewTable creates an empty routing table with a fresh identity.
func NewTable() *Table {
	return &Table{
		id:       uuid.New(),
		prefixes: NewPrefixMap(),
	}
}

// ID returns the table identity. It changes only on Reset.
func (t *Table) ID() uuid.UUID {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.id
}

// CurrentEpoch returns the number of changes applied to the table.
func (t *Table) CurrentEpoch() uint64 {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return uint64(len(t.log))
}

// AddRoute inserts a route and advances the epoch. It returns false, without
// an epoch change, if an identity-equivalent route already exists or the
// route's source filter does not compile.
func (t *Table) AddRoute(r *Route) bool {
	if err := r.Compile(); err != nil {
		return false
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if !t.prefixes.Add(r) {
		return false
	}
	t.appendLocked(r.TargetPrefix, r)
	return true
}

// RemoveRoute removes the identity-equivalent route and advances the epoch.
// Removing a route that is not present is a no-op and returns false.
func (t *Table) RemoveRoute(r *Route) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if !t.prefixes.Remove(r) {
		return false
	}
	t.appendLocked(r.TargetPrefix, nil)
	return true
}

// Replace swaps the routes registered under prefix for the single given
// route, or withdraws the prefix entirely when route is nil. It advances the
// epoch by one if and only if the table changed.
func (t *Table) Replace(prefix ilp.AddressPrefix, route *Route) bool {
	if route != nil {
		if err := route.Compile(); err != nil {
			return false
		}
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	current := t.prefixes.RoutesFor(prefix)
	if route == nil {
		if len(current) == 0 {
			return false
		}
		t.prefixes.RemovePrefix(prefix)
		t.appendLocked(prefix, nil)
		return true
	}
	if len(current) == 1 && current[0].SameIdentity(route) {
		return false
	}
	t.prefixes.RemovePrefix(prefix)
	t.prefixes.Add(route)
	t.appendLocked(prefix, route)
	return true
}

// RoutesFor returns the routes registered under the exact prefix.
func (t *Table) RoutesFor(prefix ilp.AddressPrefix) []*Route {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return append([]*Route(nil), t.prefixes.RoutesFor(prefix)...)
}

// FindNextHopRoutes returns every route whose target prefix covers the
// destination.
func (t *Table) FindNextHopRoutes(destination ilp.Address) []*Route {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.prefixes.FindNextHopRoutes(destination)
}

// FindLongestPrefix returns the most specific registered prefix covering
// the input.
func (t *Table) FindLongestPrefix(prefix ilp.AddressPrefix) (ilp.AddressPrefix, bool) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.prefixes.FindLongestPrefix(prefix)
}

// NumKeys returns the number of distinct prefixes in the table.
func (t *Table) NumKeys() int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.prefixes.NumKeys()
}

// Prefixes calls fn for every registered prefix, under the read lock.
func (t *Table) Prefixes(fn func(ilp.AddressPrefix)) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	t.prefixes.Prefixes(fn)
}

// UpdatesInRange returns the log entries with epoch in [from, to). The
// bounds are clamped to the existing log.
func (t *Table) UpdatesInRange(from, to uint64) []Update {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	if from >= uint64(len(t.log)) || from >= to {
		return nil
	}
	if to > uint64(len(t.log)) {
		to = uint64(len(t.log))
	}
	return append([]Update(nil), t.log[from:to]...)
}

// Reset assigns the table a fresh identity and rebuilds the update log from
// the currently registered routes, forcing peers that track the old
// identity into a full resync.
func (t *Table) Reset() {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.id = uuid.New()
	t.log = t.log[:0]
	t.prefixes.Prefixes(func(p ilp.AddressPrefix) {
		for _, r := range t.prefixes.RoutesFor(p) {
			t.appendLocked(p, r)
		}
	})
}

func (t *Table) appendLocked(prefix ilp.AddressPrefix, route *Route) {
	t.log = append(t.log, Update{
		Prefix: prefix,
		Epoch:  uint64(len(t.log)),
		Route:  route,
	})
}
