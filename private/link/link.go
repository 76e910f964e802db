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

// Package link abstracts the bilateral transports packets travel over. The
// switch only ever sees the Link interface; the concrete transport (BTP,
// HTTP, in-process) is registered per account at connect time.
package link

import (
	"context"
	"sync"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/pkg/private/serrors"
)

// Link is one side of a bilateral packet transport.
type Link interface {
	// SendPacket transmits a prepare and blocks until the reply arrives, the
	// packet expires or the context is cancelled.
	SendPacket(ctx context.Context, pkt *ilp.Prepare) (ilp.Reply, error)
}

// Func adapts a function to the Link interface.
type Func func(ctx context.Context, pkt *ilp.Prepare) (ilp.Reply, error)

func (f Func) SendPacket(ctx context.Context, pkt *ilp.Prepare) (ilp.Reply, error) {
	return f(ctx, pkt)
}

// Listener is notified when an account's link connects or disconnects.
// Callbacks run synchronously on the registering goroutine and must not
// call back into the Manager.
type Listener interface {
	LinkConnected(ctx context.Context, id accounts.ID)
	LinkDisconnected(ctx context.Context, id accounts.ID)
}

// Manager is the registry of connected links, keyed by account.
type Manager struct {
	logger log.Logger

	mtx       sync.RWMutex
	links     map[accounts.ID]Link
	listeners []Listener
}

// NewManager creates an empty link registry.
func NewManager(logger log.Logger) *Manager {
	return &Manager{
		logger: logger,
		links:  make(map[accounts.ID]Link),
	}
}

// Subscribe registers a connect/disconnect listener. Must be called before
// links start registering.
func (m *Manager) Subscribe(l Listener) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.listeners = append(m.listeners, l)
}

// Register installs the link for an account, replacing a previous one, and
// notifies listeners of the connect.
func (m *Manager) Register(ctx context.Context, id accounts.ID, l Link) {
	m.mtx.Lock()
	m.links[id] = l
	listeners := m.listeners
	m.mtx.Unlock()

	m.logger.Debug("Link registered", "account", id)
	for _, listener := range listeners {
		listener.LinkConnected(ctx, id)
	}
}

// Unregister removes the account's link and notifies listeners of the
// disconnect. Unknown accounts are a no-op.
func (m *Manager) Unregister(ctx context.Context, id accounts.ID) {
	m.mtx.Lock()
	_, ok := m.links[id]
	if ok {
		delete(m.links, id)
	}
	listeners := m.listeners
	m.mtx.Unlock()
	if !ok {
		return
	}

	m.logger.Debug("Link unregistered", "account", id)
	for _, listener := range listeners {
		listener.LinkDisconnected(ctx, id)
	}
}

// Get returns the account's link.
func (m *Manager) Get(id accounts.ID) (Link, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	l, ok := m.links[id]
	return l, ok
}

// SendToPeer resolves the account's link and forwards the packet over it.
// It satisfies the packet sender interface of the route broadcaster.
func (m *Manager) SendToPeer(
	ctx context.Context,
	id accounts.ID,
	pkt *ilp.Prepare,
) (ilp.Reply, error) {
	l, ok := m.Get(id)
	if !ok {
		return nil, serrors.New("no link connected", "account", id)
	}
	return l.SendPacket(ctx, pkt)
}
