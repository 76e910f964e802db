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

package ccp

import (
	"context"
	"sync"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
)

// fakeSender records every packet handed to it and answers with a canned
// reply. Safe for concurrent use; the senders under test run in background
// goroutines.
type fakeSender struct {
	mtx   sync.Mutex
	sent  []sentPacket
	reply ilp.Reply
	err   error
}

type sentPacket struct {
	peer accounts.ID
	pkt  *ilp.Prepare
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		reply: &ilp.Fulfill{Fulfillment: ilp.PeerProtocolFulfillment},
	}
}

func (f *fakeSender) SendToPeer(
	ctx context.Context,
	peer accounts.ID,
	pkt *ilp.Prepare,
) (ilp.Reply, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.sent = append(f.sent, sentPacket{peer: peer, pkt: pkt})
	return f.reply, f.err
}

func (f *fakeSender) packets() []sentPacket {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]sentPacket(nil), f.sent...)
}

func (f *fakeSender) last() (sentPacket, bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if len(f.sent) == 0 {
		return sentPacket{}, false
	}
	return f.sent[len(f.sent)-1], true
}

func (f *fakeSender) setErr(err error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.err = err
}

func (f *fakeSender) setReply(reply ilp.Reply) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.reply = reply
}

// fakeAccounts is an in-memory AccountLookup.
type fakeAccounts map[accounts.ID]*accounts.Settings

func (f fakeAccounts) GetAccount(
	ctx context.Context,
	id accounts.ID,
) (*accounts.Settings, bool) {
	s, ok := f[id]
	return s, ok
}
