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

package router_test

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/private/link"
	"github.com/interledger/connector/router"
)

var localAddr = ilp.MustParseAddress("test.conn")

// terminal is a stand-in for the rest of the chain.
type terminal struct {
	reply  ilp.Reply
	err    error
	calls  int
	gotPkt *ilp.Prepare
	gotCtx context.Context
}

func (t *terminal) Name() string { return "terminal" }

func (t *terminal) Filter(
	ctx context.Context,
	src *accounts.Settings,
	pkt *ilp.Prepare,
	next router.Chain,
) (ilp.Reply, error) {
	t.calls++
	t.gotPkt = pkt
	t.gotCtx = ctx
	return t.reply, t.err
}

func preimageCondition(preimage ilp.Fulfillment) ilp.Condition {
	return sha256.Sum256(preimage[:])
}

func runFilter(
	t *testing.T,
	f router.Filter,
	src *accounts.Settings,
	pkt *ilp.Prepare,
	end *terminal,
) ilp.Reply {
	t.Helper()
	reply, err := router.Run(context.Background(),
		[]router.Filter{f, end}, src, pkt)
	require.NoError(t, err)
	return reply
}

func srcAccount(id accounts.ID) *accounts.Settings {
	return &accounts.Settings{
		ID:           id,
		Relationship: accounts.Peer,
		AssetCode:    "USD",
		AssetScale:   9,
		ILPAddress:   ilp.Address("g." + string(id)),
	}
}

func testPrepare(dest string, amount uint64) *ilp.Prepare {
	return &ilp.Prepare{
		Destination:        ilp.MustParseAddress(dest),
		Amount:             amount,
		ExecutionCondition: ilp.PeerProtocolCondition,
		ExpiresAt:          time.Now().Add(30 * time.Second),
	}
}

func requireReject(t *testing.T, reply ilp.Reply, code ilp.ErrorCode) *ilp.Reject {
	t.Helper()
	rej, ok := reply.(*ilp.Reject)
	require.True(t, ok, "expected a reject, got %T", reply)
	require.Equal(t, code, rej.Code)
	return rej
}

// lookupMap is an in-memory AccountLookup.
type lookupMap map[accounts.ID]*accounts.Settings

func (m lookupMap) GetAccount(
	ctx context.Context,
	id accounts.ID,
) (*accounts.Settings, bool) {
	s, ok := m[id]
	return s, ok
}

// linkMap is an in-memory LinkResolver.
type linkMap map[accounts.ID]link.Link

func (m linkMap) Get(id accounts.ID) (link.Link, bool) {
	l, ok := m[id]
	return l, ok
}
