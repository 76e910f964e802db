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

package ilp

import (
	"strings"

	"github.com/interledger/connector/pkg/private/serrors"
)

// Separator delimits the segments of an ILP address.
const Separator = "."

// Address is a dot-separated ILP address, e.g. "g.alice.1". An Address never
// ends in a separator; see AddressPrefix for the matching form.
type Address string

// AddressPrefix is an ILP address prefix. It always ends in a separator and
// is only ever used for matching, never as a packet destination. The global
// prefix "g." matches every address under the global allocation scheme and
// acts as the default route when registered.
type AddressPrefix string

const maxAddressLen = 1023

func validSegments(s string) bool {
	if len(s) == 0 || len(s) > maxAddressLen {
		return false
	}
	for _, seg := range strings.Split(s, Separator) {
		if len(seg) == 0 {
			return false
		}
		for i := 0; i < len(seg); i++ {
			c := seg[i]
			switch {
			case c >= 'a' && c <= 'z':
			case c >= 'A' && c <= 'Z':
			case c >= '0' && c <= '9':
			case c == '_' || c == '~' || c == '-':
			default:
				return false
			}
		}
	}
	return true
}

// ParseAddress parses and validates an ILP address.
func ParseAddress(s string) (Address, error) {
	if strings.HasSuffix(s, Separator) {
		return "", serrors.New("address must not end in separator", "input", s)
	}
	if !validSegments(s) {
		return "", serrors.New("malformed ILP address", "input", s)
	}
	return Address(s), nil
}

// MustParseAddress parses an ILP address and panics on malformed input.
// Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParsePrefix parses and validates an ILP address prefix. The trailing
// separator is mandatory.
func ParsePrefix(s string) (AddressPrefix, error) {
	trimmed, ok := strings.CutSuffix(s, Separator)
	if !ok {
		return "", serrors.New("prefix must end in separator", "input", s)
	}
	if !validSegments(trimmed) {
		return "", serrors.New("malformed ILP address prefix", "input", s)
	}
	return AddressPrefix(s), nil
}

// MustParsePrefix parses an ILP address prefix and panics on malformed input.
func MustParsePrefix(s string) AddressPrefix {
	p, err := ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Prefix returns the address as a prefix covering everything beneath it.
func (a Address) Prefix() AddressPrefix {
	return AddressPrefix(string(a) + Separator)
}

// StartsWith reports whether p covers the given address. Matching is
// case-sensitive and segment-aligned: "g.foo." covers "g.foo.bar" but not
// "g.foobar".
func (p AddressPrefix) StartsWith(a Address) bool {
	return strings.HasPrefix(string(a)+Separator, string(p))
}

// Covers reports whether p is an ancestor of (or equal to) the other prefix.
func (p AddressPrefix) Covers(other AddressPrefix) bool {
	return strings.HasPrefix(string(other), string(p))
}

// Parent returns the prefix one segment shorter, and false once the
// allocation-scheme root is reached.
func (p AddressPrefix) Parent() (AddressPrefix, bool) {
	trimmed := strings.TrimSuffix(string(p), Separator)
	i := strings.LastIndex(trimmed, Separator)
	if i < 0 {
		return "", false
	}
	return AddressPrefix(trimmed[:i+1]), true
}

// NumSegments returns the number of segments in the prefix.
func (p AddressPrefix) NumSegments() int {
	return strings.Count(string(p), Separator)
}
