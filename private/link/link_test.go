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

package link_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/private/link"
)

type recordingListener struct {
	connected    []accounts.ID
	disconnected []accounts.ID
}

func (l *recordingListener) LinkConnected(ctx context.Context, id accounts.ID) {
	l.connected = append(l.connected, id)
}

func (l *recordingListener) LinkDisconnected(ctx context.Context, id accounts.ID) {
	l.disconnected = append(l.disconnected, id)
}

func TestManagerLifecycle(t *testing.T) {
	m := link.NewManager(log.Discard())
	listener := &recordingListener{}
	m.Subscribe(listener)

	echo := link.Func(func(ctx context.Context, pkt *ilp.Prepare) (ilp.Reply, error) {
		return &ilp.Fulfill{Data: pkt.Data}, nil
	})
	ctx := context.Background()
	m.Register(ctx, "alice", echo)
	assert.Equal(t, []accounts.ID{"alice"}, listener.connected)

	reply, err := m.SendToPeer(ctx, "alice", &ilp.Prepare{Data: []byte("hi")})
	require.NoError(t, err)
	fulfill, ok := reply.(*ilp.Fulfill)
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), fulfill.Data)

	_, err = m.SendToPeer(ctx, "bob", &ilp.Prepare{})
	assert.Error(t, err)

	m.Unregister(ctx, "alice")
	assert.Equal(t, []accounts.ID{"alice"}, listener.disconnected)
	_, ok = m.Get("alice")
	assert.False(t, ok)

	// Unregistering twice stays quiet.
	m.Unregister(ctx, "alice")
	assert.Len(t, listener.disconnected, 1)
}

func TestLoopbackPing(t *testing.T) {
	lb := link.NewLoopback(ilp.MustParseAddress("test.local"))
	ctx := context.Background()

	reply, err := lb.SendPacket(ctx, &ilp.Prepare{
		Destination:        ilp.MustParseAddress("test.local"),
		ExecutionCondition: ilp.PeerProtocolCondition,
		ExpiresAt:          time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	fulfill, ok := reply.(*ilp.Fulfill)
	require.True(t, ok)
	require.True(t, fulfill.Validate(ilp.PeerProtocolCondition))

	reply, err = lb.SendPacket(ctx, &ilp.Prepare{
		Destination:        ilp.MustParseAddress("test.local"),
		ExecutionCondition: ilp.Condition{1, 2, 3},
	})
	require.NoError(t, err)
	rej, ok := reply.(*ilp.Reject)
	require.True(t, ok)
	assert.Equal(t, ilp.CodeUnreachable, rej.Code)
}
