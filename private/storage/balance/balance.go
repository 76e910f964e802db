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

// Package balance tracks the running net position each peer account holds
// with the connector. The switch debits the source account when a packet is
// prepared, credits it back when the packet is rejected, and credits the
// destination account when the downstream fulfillment arrives.
package balance

import (
	"context"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/private/serrors"
)

// ErrInsufficient is returned by Debit when the adjustment would push the
// balance below the account's floor.
var ErrInsufficient = serrors.New("balance would fall below the minimum")

// Tracker maintains per-account balances. Implementations must apply each
// adjustment atomically; concurrent packets for the same account race for
// the remaining headroom.
type Tracker interface {
	// Balance returns the account's current balance. Accounts with no
	// recorded activity have balance 0.
	Balance(ctx context.Context, id accounts.ID) (int64, error)
	// Debit subtracts amount if the result stays at or above floor and
	// returns the new balance, or ErrInsufficient without any change.
	Debit(ctx context.Context, id accounts.ID, amount uint64, floor int64) (int64, error)
	// Credit adds amount unconditionally and returns the new balance.
	Credit(ctx context.Context, id accounts.ID, amount uint64) (int64, error)
}
