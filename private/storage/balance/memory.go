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

package balance

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/private/serrors"
)

// Memory is the in-process Tracker. Balances are lost on restart; suitable
// for tests and single-node deployments without settlement durability
// requirements.
type Memory struct {
	mtx      sync.RWMutex
	balances map[accounts.ID]*atomic.Int64
}

// NewMemory creates an empty in-memory tracker.
func NewMemory() *Memory {
	return &Memory{balances: make(map[accounts.ID]*atomic.Int64)}
}

func (m *Memory) balance(id accounts.ID) *atomic.Int64 {
	m.mtx.RLock()
	b, ok := m.balances[id]
	m.mtx.RUnlock()
	if ok {
		return b
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if b, ok = m.balances[id]; !ok {
		b = &atomic.Int64{}
		m.balances[id] = b
	}
	return b
}

// Balance implements Tracker.
func (m *Memory) Balance(ctx context.Context, id accounts.ID) (int64, error) {
	return m.balance(id).Load(), nil
}

// Debit implements Tracker with a compare-and-swap loop over the account's
// counter.
func (m *Memory) Debit(
	ctx context.Context,
	id accounts.ID,
	amount uint64,
	floor int64,
) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, serrors.New("amount overflows the balance range", "amount", amount)
	}
	b := m.balance(id)
	for {
		cur := b.Load()
		next := cur - int64(amount)
		if next > cur || next < floor {
			return 0, serrors.Wrap("debiting account", ErrInsufficient,
				"account", id, "balance", cur, "amount", amount, "floor", floor)
		}
		if b.CompareAndSwap(cur, next) {
			return next, nil
		}
	}
}

// Credit implements Tracker. Crediting past the top of the balance range is
// an error; the balance is left unchanged.
func (m *Memory) Credit(ctx context.Context, id accounts.ID, amount uint64) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, serrors.New("amount overflows the balance range", "amount", amount)
	}
	b := m.balance(id)
	for {
		cur := b.Load()
		next := cur + int64(amount)
		if next < cur {
			return 0, serrors.New("crediting would overflow the balance range",
				"account", id, "balance", cur, "amount", amount)
		}
		if b.CompareAndSwap(cur, next) {
			return next, nil
		}
	}
}
