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

package ilp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/interledger/connector/pkg/ilp"
)

func TestParseAddress(t *testing.T) {
	testCases := map[string]struct {
		input     string
		assertErr assert.ErrorAssertionFunc
	}{
		"simple":             {"g.alice", assert.NoError},
		"deep":               {"g.usd.bank.alice.1", assert.NoError},
		"peer scheme":        {"peer.route.update", assert.NoError},
		"allowed chars":      {"g.al-ice_2~x", assert.NoError},
		"trailing separator": {"g.alice.", assert.Error},
		"empty":              {"", assert.Error},
		"empty segment":      {"g..alice", assert.Error},
		"bad char":           {"g.al ice", assert.Error},
		"unicode":            {"g.älice", assert.Error},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := ilp.ParseAddress(tc.input)
			tc.assertErr(t, err)
		})
	}
}

func TestParsePrefix(t *testing.T) {
	_, err := ilp.ParsePrefix("g.alice.")
	assert.NoError(t, err)
	_, err = ilp.ParsePrefix("g.alice")
	assert.Error(t, err)
	_, err = ilp.ParsePrefix(".")
	assert.Error(t, err)
}

func TestPrefixStartsWith(t *testing.T) {
	testCases := []struct {
		prefix string
		addr   string
		want   bool
	}{
		{"g.foo.", "g.foo.bar", true},
		{"g.foo.", "g.foo", true},
		{"g.foo.", "g.foobar", false},
		{"g.", "g.anything.at.all", true},
		{"g.", "private.x", false},
		{"g.Foo.", "g.foo.bar", false},
	}
	for _, tc := range testCases {
		got := ilp.AddressPrefix(tc.prefix).StartsWith(ilp.Address(tc.addr))
		assert.Equal(t, tc.want, got, "prefix %q addr %q", tc.prefix, tc.addr)
	}
}

func TestPrefixParent(t *testing.T) {
	p := ilp.MustParsePrefix("g.baz.boo.")
	parent, ok := p.Parent()
	assert.True(t, ok)
	assert.Equal(t, ilp.AddressPrefix("g.baz."), parent)

	root := ilp.MustParsePrefix("g.")
	_, ok = root.Parent()
	assert.False(t, ok)
}

func TestFulfillValidate(t *testing.T) {
	f := &ilp.Fulfill{Fulfillment: ilp.Fulfillment{1, 2, 3}}
	assert.True(t, f.Validate(f.Fulfillment.Condition()))
	assert.False(t, f.Validate(ilp.Condition{}))
	assert.True(t, (&ilp.Fulfill{}).Validate(ilp.PeerProtocolCondition))
}
