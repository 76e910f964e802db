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

package accounts

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
	"zgo.at/zcache/v2"

	"github.com/interledger/connector/pkg/accounts"
)

// Loader is the read side of the settings store the cache fills from.
type Loader interface {
	Get(ctx context.Context, id accounts.ID) (*accounts.Settings, error)
}

// LoadingCache serves account settings from an expiring in-process cache,
// loading misses from the store. Concurrent misses for the same account are
// collapsed into a single load. Settings changes become visible once the
// cached entry expires or is invalidated.
type LoadingCache struct {
	loader Loader
	cache  *zcache.Cache[accounts.ID, *accounts.Settings]
	group  singleflight.Group
}

// NewLoadingCache creates a cache over the loader with the given entry TTL.
func NewLoadingCache(loader Loader, ttl time.Duration) *LoadingCache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &LoadingCache{
		loader: loader,
		cache:  zcache.New[accounts.ID, *accounts.Settings](ttl, 2*ttl),
	}
}

// Get returns the account's settings, loading them on a cache miss. The
// cached *Settings is shared; callers must not mutate it.
func (c *LoadingCache) Get(ctx context.Context, id accounts.ID) (*accounts.Settings, error) {
	if settings, ok := c.cache.Get(id); ok {
		return settings, nil
	}
	v, err, _ := c.group.Do(string(id), func() (any, error) {
		settings, err := c.loader.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		c.cache.Set(id, settings)
		return settings, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*accounts.Settings), nil
}

// GetAccount adapts Get to the lookup interface of the routing control
// plane, which distinguishes only found/not-found.
func (c *LoadingCache) GetAccount(ctx context.Context, id accounts.ID) (*accounts.Settings, bool) {
	settings, err := c.Get(ctx, id)
	if err != nil {
		return nil, false
	}
	return settings, true
}

// Invalidate drops the cached entry so the next read hits the store.
func (c *LoadingCache) Invalidate(id accounts.ID) {
	c.cache.Delete(id)
}
