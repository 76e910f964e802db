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

// Package ccp defines the Connector-to-Connector Protocol messages used to
// synchronize routing tables between peers, and their binary encoding. CCP
// messages travel as the data of Prepare packets addressed to the reserved
// peer.route.* destinations, locked by the fixed peer-protocol condition.
package ccp

import (
	"time"

	"github.com/google/uuid"

	"github.com/interledger/connector/pkg/ilp"
)

// Reserved peer-protocol destinations.
const (
	// RouteControlDestination receives RouteControlRequest messages.
	RouteControlDestination ilp.Address = "peer.route.control"
	// RouteUpdateDestination receives RouteUpdateRequest messages.
	RouteUpdateDestination ilp.Address = "peer.route.update"
)

// Mode is the requested broadcast mode of a peer's sender.
type Mode uint8

const (
	// ModeIdle stops route broadcasting to the requesting peer.
	ModeIdle Mode = iota
	// ModeSync starts (or continues) periodic route broadcasting.
	ModeSync
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "MODE_IDLE"
	case ModeSync:
		return "MODE_SYNC"
	default:
		return "MODE_UNKNOWN"
	}
}

// RouteControlRequest asks the receiving connector to transition the sender
// for this peer into the given mode. LastKnownRoutingTableID and
// LastKnownEpoch tell the sender where the requesting peer's view of the
// table ends, so that only newer epochs are transmitted.
type RouteControlRequest struct {
	Mode                    Mode
	LastKnownRoutingTableID uuid.UUID
	LastKnownEpoch          uint64
	Features                []string
}

// Route is one advertised route inside a RouteUpdateRequest.
type Route struct {
	Prefix ilp.AddressPrefix
	// Path lists the connectors the advertisement traversed, the speaker
	// first. Receivers drop routes whose path contains their own address.
	Path []ilp.Address
	// Auth is the chained authentication hash for the route.
	Auth [32]byte
}

// RouteUpdateRequest carries one batch of the speaker's outgoing update log,
// covering epochs [FromEpochIndex, ToEpochIndex).
type RouteUpdateRequest struct {
	Speaker        ilp.Address
	RoutingTableID uuid.UUID
	// CurrentEpochIndex is the speaker's epoch at the time of sending; it
	// may be ahead of ToEpochIndex when the batch was capped.
	CurrentEpochIndex uint64
	FromEpochIndex    uint64
	ToEpochIndex      uint64
	// HoldDownTime is how long the receiver may keep using these routes
	// without hearing from the speaker again.
	HoldDownTime           time.Duration
	NewRoutes              []Route
	WithdrawnRoutePrefixes []ilp.AddressPrefix
}
