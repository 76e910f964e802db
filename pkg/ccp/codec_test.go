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

package ccp_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interledger/connector/pkg/ccp"
	"github.com/interledger/connector/pkg/ilp"
)

func TestRouteControlRoundTrip(t *testing.T) {
	in := &ccp.RouteControlRequest{
		Mode:                    ccp.ModeSync,
		LastKnownRoutingTableID: uuid.New(),
		LastKnownEpoch:          42,
		Features:                []string{"x", "y"},
	}
	out, err := ccp.DecodeRouteControlRequest(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRouteUpdateRoundTrip(t *testing.T) {
	in := &ccp.RouteUpdateRequest{
		Speaker:           ilp.MustParseAddress("g.speaker"),
		RoutingTableID:    uuid.New(),
		CurrentEpochIndex: 10,
		FromEpochIndex:    4,
		ToEpochIndex:      9,
		HoldDownTime:      45 * time.Second,
		NewRoutes: []ccp.Route{
			{
				Prefix: ilp.MustParsePrefix("g.dest."),
				Path: []ilp.Address{
					ilp.MustParseAddress("g.speaker"),
					ilp.MustParseAddress("g.origin"),
				},
				Auth: [32]byte{1, 2, 3},
			},
		},
		WithdrawnRoutePrefixes: []ilp.AddressPrefix{
			ilp.MustParsePrefix("g.gone."),
		},
	}
	out, err := ccp.DecodeRouteUpdateRequest(in.Encode())
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("decoded update mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := ccp.DecodeRouteControlRequest(nil)
	assert.Error(t, err)
	_, err = ccp.DecodeRouteControlRequest([]byte{99, 0})
	assert.Error(t, err, "wrong version")
	_, err = ccp.DecodeRouteControlRequest([]byte{1, 7})
	assert.Error(t, err, "unknown mode")

	valid := (&ccp.RouteUpdateRequest{
		Speaker:        ilp.MustParseAddress("g.speaker"),
		RoutingTableID: uuid.New(),
	}).Encode()
	_, err = ccp.DecodeRouteUpdateRequest(valid[:len(valid)-3])
	assert.Error(t, err, "truncated payload")

	bad := &ccp.RouteUpdateRequest{
		Speaker:        ilp.MustParseAddress("g.speaker"),
		FromEpochIndex: 9,
		ToEpochIndex:   4,
	}
	_, err = ccp.DecodeRouteUpdateRequest(bad.Encode())
	assert.Error(t, err, "inverted epoch range")
}

func TestNewRouteUpdatePrepare(t *testing.T) {
	m := &ccp.RouteUpdateRequest{Speaker: ilp.MustParseAddress("g.speaker")}
	expiry := time.Now().Add(30 * time.Second)
	pkt := ccp.NewRouteUpdatePrepare(m, expiry)
	assert.Equal(t, ccp.RouteUpdateDestination, pkt.Destination)
	assert.Equal(t, ilp.PeerProtocolCondition, pkt.ExecutionCondition)
	out, err := ccp.DecodeRouteUpdateRequest(pkt.Data)
	require.NoError(t, err)
	assert.Equal(t, m.Speaker, out.Speaker)
}
