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

package link

import (
	"context"

	"github.com/interledger/connector/pkg/ilp"
)

// Loopback is the link behind the connector's own address. Packets locked
// by the well-known peer-protocol condition are fulfilled, which lets
// operators and peers ping the connector end to end. Anything else is
// unreachable: the connector terminates no other payments itself.
type Loopback struct {
	localAddress ilp.Address
}

// NewLoopback creates the loopback link for the given local address.
func NewLoopback(localAddress ilp.Address) *Loopback {
	return &Loopback{localAddress: localAddress}
}

func (l *Loopback) SendPacket(ctx context.Context, pkt *ilp.Prepare) (ilp.Reply, error) {
	if pkt.ExecutionCondition == ilp.PeerProtocolCondition {
		return &ilp.Fulfill{Fulfillment: ilp.PeerProtocolFulfillment}, nil
	}
	return ilp.NewReject(ilp.CodeUnreachable,
		"destination terminates at this connector", l.localAddress), nil
}
