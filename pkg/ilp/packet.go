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

// Package ilp defines the Interledger packet model: addresses, the
// Prepare/Fulfill/Reject packet types and the error codes carried by
// rejections. Packets are plain values; the on-the-wire OER encoding is
// handled by the transport layer and is not part of this package.
package ilp

import (
	"crypto/sha256"
	"time"
)

// ConditionLen is the length of an execution condition and its preimage.
const ConditionLen = 32

// Condition is the SHA-256 hash locking a Prepare packet.
type Condition [ConditionLen]byte

// Fulfillment is the preimage releasing a locked Prepare packet.
type Fulfillment [ConditionLen]byte

// Condition returns the execution condition the fulfillment unlocks.
func (f Fulfillment) Condition() Condition {
	return sha256.Sum256(f[:])
}

// Prepare is the first phase of an Interledger transfer. It is immutable
// once created; the switch derives adjusted copies instead of mutating it.
type Prepare struct {
	Destination        Address
	Amount             uint64
	ExecutionCondition Condition
	ExpiresAt          time.Time
	Data               []byte
}

// Fulfill is the success response to a Prepare. It is only valid if the
// fulfillment hashes to the Prepare's execution condition.
type Fulfill struct {
	Fulfillment Fulfillment
	Data        []byte
}

// Validate reports whether the fulfillment matches the given condition.
func (f *Fulfill) Validate(cond Condition) bool {
	return f.Fulfillment.Condition() == cond
}

// Reject is the failure response to a Prepare.
type Reject struct {
	Code        ErrorCode
	Message     string
	TriggeredBy Address
	Data        []byte
}

// Reply is either a *Fulfill or a *Reject. Filters and links pass replies as
// values; an error return is reserved for faults the switch cannot classify.
type Reply interface {
	isReply()
}

func (*Fulfill) isReply() {}
func (*Reject) isReply()  {}

// PeerProtocolFulfillment is the well-known all-zero preimage used by peer
// protocol messages (CCP, IL-DCP, settlement), which are not value transfers
// and carry a fixed, publicly known condition.
var PeerProtocolFulfillment = Fulfillment{}

// PeerProtocolCondition is sha256 of the all-zero fulfillment.
var PeerProtocolCondition = PeerProtocolFulfillment.Condition()
