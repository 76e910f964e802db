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

package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interledger/connector/control/routing"
	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
)

func accountID(s string) accounts.ID {
	return accounts.ID(s)
}

func mkRoute(prefix string, nextHop string) *routing.Route {
	r := &routing.Route{
		TargetPrefix: ilp.MustParsePrefix(prefix),
		NextHop:      accountID(nextHop),
	}
	if err := r.Compile(); err != nil {
		panic(err)
	}
	return r
}

func TestPrefixMapFindLongestPrefix(t *testing.T) {
	m := routing.NewPrefixMap()
	for _, p := range []string{"g.", "g.foo.", "g.bar.", "g.baz.boo.", "g.baz.boo.bar."} {
		require.True(t, m.Add(mkRoute(p, "peer")))
	}

	testCases := map[string]struct {
		input string
		want  string
		found bool
	}{
		"most specific wins":   {"g.baz.boo.bar.alice.", "g.baz.boo.bar.", true},
		"segment aligned":      {"g.bazz.", "g.", true},
		"exact match":          {"g.foo.", "g.foo.", true},
		"intermediate":         {"g.baz.boo.alice.", "g.baz.boo.", true},
		"default route":        {"g.quux.", "g.", true},
		"other scheme no hit":  {"private.x.", "", false},
		"no foobar via g.foo.": {"g.foobar.", "g.", true},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, found := m.FindLongestPrefix(ilp.MustParsePrefix(tc.input))
			assert.Equal(t, tc.found, found)
			if tc.found {
				assert.Equal(t, ilp.AddressPrefix(tc.want), got)
			}
		})
	}
}

func TestPrefixMapFindNextHopRoutes(t *testing.T) {
	m := routing.NewPrefixMap()
	require.True(t, m.Add(mkRoute("g.", "default")))
	require.True(t, m.Add(mkRoute("g.foo.", "a")))
	require.True(t, m.Add(mkRoute("g.foo.bar.", "b")))

	routes := m.FindNextHopRoutes(ilp.MustParseAddress("g.foo.bar.alice"))
	hops := make(map[string]bool)
	for _, r := range routes {
		hops[string(r.NextHop)] = true
	}
	assert.Equal(t, map[string]bool{"default": true, "a": true, "b": true}, hops)

	routes = m.FindNextHopRoutes(ilp.MustParseAddress("g.foobar.alice"))
	require.Len(t, routes, 1)
	assert.Equal(t, accountID("default"), routes[0].NextHop)

	assert.Empty(t, m.FindNextHopRoutes(ilp.MustParseAddress("private.alice")))
}

func TestPrefixMapIdempotentAdd(t *testing.T) {
	m := routing.NewPrefixMap()
	r := mkRoute("g.foo.", "a")
	assert.True(t, m.Add(r))
	assert.False(t, m.Add(mkRoute("g.foo.", "a")))
	assert.Equal(t, 1, m.NumKeys())

	// Same prefix, different next hop is a distinct route.
	assert.True(t, m.Add(mkRoute("g.foo.", "b")))
	assert.Equal(t, 1, m.NumKeys())
	assert.Len(t, m.RoutesFor(ilp.MustParsePrefix("g.foo.")), 2)
}

func TestPrefixMapRemove(t *testing.T) {
	m := routing.NewPrefixMap()
	require.True(t, m.Add(mkRoute("g.foo.", "a")))
	require.True(t, m.Add(mkRoute("g.foo.", "b")))

	assert.True(t, m.Remove(mkRoute("g.foo.", "a")))
	assert.False(t, m.Remove(mkRoute("g.foo.", "a")))
	assert.Len(t, m.RoutesFor(ilp.MustParsePrefix("g.foo.")), 1)

	assert.True(t, m.Remove(mkRoute("g.foo.", "b")))
	assert.Equal(t, 0, m.NumKeys())
}
