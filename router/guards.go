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

package router

import (
	"context"
	"encoding/binary"
	"time"

	"golang.org/x/time/rate"
	"zgo.at/zcache/v2"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
)

// AllowListFilter rejects packets whose destination is not under any of the
// allowed prefixes. An empty allow list admits everything; the reserved
// peer.* space is always admitted since peer protocols are not routed.
type AllowListFilter struct {
	localAddress ilp.Address
	allowed      []ilp.AddressPrefix
}

// NewAllowListFilter creates the filter. Prefixes must be valid; use
// ilp.ParsePrefix on operator input.
func NewAllowListFilter(localAddress ilp.Address, allowed []ilp.AddressPrefix) *AllowListFilter {
	return &AllowListFilter{localAddress: localAddress, allowed: allowed}
}

func (f *AllowListFilter) Name() string { return "allow_list" }

func (f *AllowListFilter) Filter(
	ctx context.Context,
	src *accounts.Settings,
	pkt *ilp.Prepare,
	next Chain,
) (ilp.Reply, error) {
	if len(f.allowed) == 0 || ilp.AddressPrefix("peer.").Covers(pkt.Destination.Prefix()) {
		return next.Proceed(ctx, src, pkt)
	}
	for _, prefix := range f.allowed {
		if prefix.StartsWith(pkt.Destination) {
			return next.Proceed(ctx, src, pkt)
		}
	}
	return ilp.NewReject(ilp.CodeUnreachable,
		"destination not served by this connector", f.localAddress), nil
}

// MaxPacketAmountFilter enforces the per-account packet amount cap. The
// reject data carries the received and the maximum amount so senders can
// adjust their chunking.
type MaxPacketAmountFilter struct {
	localAddress ilp.Address
}

func NewMaxPacketAmountFilter(localAddress ilp.Address) *MaxPacketAmountFilter {
	return &MaxPacketAmountFilter{localAddress: localAddress}
}

func (f *MaxPacketAmountFilter) Name() string { return "max_packet_amount" }

func (f *MaxPacketAmountFilter) Filter(
	ctx context.Context,
	src *accounts.Settings,
	pkt *ilp.Prepare,
	next Chain,
) (ilp.Reply, error) {
	if src.MaxPacketAmount == 0 || pkt.Amount <= src.MaxPacketAmount {
		return next.Proceed(ctx, src, pkt)
	}
	data := make([]byte, 16)
	binary.BigEndian.PutUint64(data[:8], pkt.Amount)
	binary.BigEndian.PutUint64(data[8:], src.MaxPacketAmount)
	rej := ilp.NewReject(ilp.CodeAmountTooLarge,
		"packet amount exceeds the maximum for this account", f.localAddress)
	rej.Data = data
	return rej, nil
}

// RateLimitFilter throttles inbound packets per account with a token
// bucket. Limiters for idle accounts are evicted after an hour.
type RateLimitFilter struct {
	localAddress ilp.Address
	limiters     *zcache.Cache[accounts.ID, *rate.Limiter]
}

func NewRateLimitFilter(localAddress ilp.Address) *RateLimitFilter {
	return &RateLimitFilter{
		localAddress: localAddress,
		limiters:     zcache.New[accounts.ID, *rate.Limiter](time.Hour, 2*time.Hour),
	}
}

func (f *RateLimitFilter) Name() string { return "rate_limit" }

func (f *RateLimitFilter) Filter(
	ctx context.Context,
	src *accounts.Settings,
	pkt *ilp.Prepare,
	next Chain,
) (ilp.Reply, error) {
	if src.RateLimitPerSecond <= 0 {
		return next.Proceed(ctx, src, pkt)
	}
	limiter, ok := f.limiters.Get(src.ID)
	if !ok {
		burst := int(src.RateLimitPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(src.RateLimitPerSecond), burst)
		f.limiters.Set(src.ID, limiter)
	}
	if !limiter.Allow() {
		return ilp.NewReject(ilp.CodeConnectorBusy,
			"too many packets, reduce your rate", f.localAddress), nil
	}
	return next.Proceed(ctx, src, pkt)
}

// ExpiryFilter rejects packets that are already expired and bounds the
// downstream round trip by the packet's expiry.
type ExpiryFilter struct {
	localAddress ilp.Address
}

func NewExpiryFilter(localAddress ilp.Address) *ExpiryFilter {
	return &ExpiryFilter{localAddress: localAddress}
}

func (f *ExpiryFilter) Name() string { return "expiry" }

func (f *ExpiryFilter) Filter(
	ctx context.Context,
	src *accounts.Settings,
	pkt *ilp.Prepare,
	next Chain,
) (ilp.Reply, error) {
	now := time.Now()
	if !pkt.ExpiresAt.After(now) {
		return ilp.NewReject(ilp.CodeInsufficientTimeout,
			"packet has already expired", f.localAddress), nil
	}
	ctx, cancel := context.WithDeadline(ctx, pkt.ExpiresAt)
	defer cancel()
	reply, err := next.Proceed(ctx, src, pkt)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return ilp.NewReject(ilp.CodeTransferTimedOut,
			"no reply before the packet expired", f.localAddress), nil
	}
	return reply, err
}
