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

// Package accounts defines the per-account settings the packet switch and
// the routing control plane operate on. Settings are owned by the
// persistence layer; the switch treats them as read-mostly and cached.
package accounts

import (
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/private/serrors"
)

// ID identifies an account on this connector.
type ID string

// Relationship describes how the peer on the other side of an account
// relates to this connector. It governs route-export eligibility and
// address assignment.
type Relationship string

const (
	// Parent is an upstream provider; this node may receive its address via
	// IL-DCP from a parent.
	Parent Relationship = "PARENT"
	// Child is a downstream customer; its address is assigned under ours.
	Child Relationship = "CHILD"
	// Peer is a settlement peer at the same tier.
	Peer Relationship = "PEER"
)

// ParseRelationship validates and normalizes a relationship string.
func ParseRelationship(s string) (Relationship, error) {
	switch Relationship(s) {
	case Parent, Child, Peer:
		return Relationship(s), nil
	}
	return "", serrors.New("unknown account relationship", "input", s)
}

// Weight returns the route-selection weight of the relationship. Routes
// through customers are preferred over peer routes, which are preferred
// over routes through a parent.
func (r Relationship) Weight() int {
	switch r {
	case Child:
		return 2
	case Peer:
		return 1
	default:
		return 0
	}
}

// Settings is the per-account configuration consumed by the packet switch.
type Settings struct {
	ID           ID
	Relationship Relationship

	// AssetCode and AssetScale define the account's unit of value. An amount
	// of n base units represents n / 10^AssetScale whole units of the asset.
	AssetCode  string
	AssetScale uint8

	// ILPAddress is the address of the peer on this account, when known. For
	// child accounts it is derived from the connector's own address.
	ILPAddress ilp.Address

	// MaxPacketAmount caps the amount of a single Prepare. Zero means
	// unlimited.
	MaxPacketAmount uint64

	// RateLimitPerSecond caps sustained inbound packets per second. Zero
	// means unrestricted.
	RateLimitPerSecond float64

	// MinBalance is the floor (usually negative or zero) below which the
	// account's net balance may not drop when reserving an inbound amount.
	MinBalance int64

	// SendRoutes enables CCP route broadcasting to this account;
	// ReceiveRoutes enables accepting CCP route updates from it.
	SendRoutes    bool
	ReceiveRoutes bool

	// LinkType selects the outbound link implementation for this account.
	LinkType string

	// Custom carries link- or deployment-specific settings.
	Custom map[string]string
}

// Validate checks internal consistency of the settings.
func (s *Settings) Validate() error {
	if s.ID == "" {
		return serrors.New("account id must not be empty")
	}
	if _, err := ParseRelationship(string(s.Relationship)); err != nil {
		return serrors.Wrap("validating account", err, "id", s.ID)
	}
	if s.AssetCode == "" {
		return serrors.New("asset code must not be empty", "id", s.ID)
	}
	return nil
}
