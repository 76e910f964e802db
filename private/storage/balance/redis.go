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

	"github.com/redis/go-redis/v9"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/private/serrors"
)

// debitScript applies the floor check and the decrement in one atomic step
// on the server, so concurrent connector instances cannot over-debit.
var debitScript = redis.NewScript(`
local bal = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
local floor = tonumber(ARGV[2])
if bal - amount < floor then
	return {0, bal}
end
bal = bal - amount
redis.call('SET', KEYS[1], bal)
return {1, bal}
`)

// Redis is a Tracker backed by a shared Redis instance, for deployments
// where several connector processes serve the same accounts.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedis creates a tracker on the given client. Keys are namespaced with
// keyPrefix; pass "" for the default "connector:balance:".
func NewRedis(client redis.UniversalClient, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "connector:balance:"
	}
	return &Redis{client: client, keyPrefix: keyPrefix}
}

func (r *Redis) key(id accounts.ID) string {
	return r.keyPrefix + string(id)
}

// Balance implements Tracker.
func (r *Redis) Balance(ctx context.Context, id accounts.ID) (int64, error) {
	bal, err := r.client.Get(ctx, r.key(id)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, serrors.Wrap("reading balance", err, "account", id)
	}
	return bal, nil
}

// Debit implements Tracker via a server-side script.
func (r *Redis) Debit(
	ctx context.Context,
	id accounts.ID,
	amount uint64,
	floor int64,
) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, serrors.New("amount overflows the balance range", "amount", amount)
	}
	res, err := debitScript.Run(ctx, r.client,
		[]string{r.key(id)}, amount, floor).Int64Slice()
	if err != nil {
		return 0, serrors.Wrap("debiting balance", err, "account", id)
	}
	if len(res) != 2 {
		return 0, serrors.New("unexpected debit script reply",
			"account", id, "reply_len", len(res))
	}
	if res[0] == 0 {
		return 0, serrors.Wrap("debiting account", ErrInsufficient,
			"account", id, "balance", res[1], "amount", amount, "floor", floor)
	}
	return res[1], nil
}

// Credit implements Tracker. Overflow past the top of the int64 range is
// rejected here for the amount and by the Redis server for the counter.
func (r *Redis) Credit(ctx context.Context, id accounts.ID, amount uint64) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, serrors.New("amount overflows the balance range", "amount", amount)
	}
	bal, err := r.client.IncrBy(ctx, r.key(id), int64(amount)).Result()
	if err != nil {
		return 0, serrors.Wrap("crediting balance", err, "account", id)
	}
	return bal, nil
}
