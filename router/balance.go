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
	"errors"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/private/storage/balance"
)

// BalanceFilter reserves the packet amount against the source account
// before forwarding and reverses the reservation when the packet fails.
// Only a Fulfill keeps the debit; the source peer has then irrevocably paid
// for the delivery.
type BalanceFilter struct {
	localAddress ilp.Address
	tracker      balance.Tracker
	logger       log.Logger
}

func NewBalanceFilter(
	localAddress ilp.Address,
	tracker balance.Tracker,
	logger log.Logger,
) *BalanceFilter {
	return &BalanceFilter{
		localAddress: localAddress,
		tracker:      tracker,
		logger:       logger,
	}
}

func (f *BalanceFilter) Name() string { return "balance" }

func (f *BalanceFilter) Filter(
	ctx context.Context,
	src *accounts.Settings,
	pkt *ilp.Prepare,
	next Chain,
) (ilp.Reply, error) {
	if pkt.Amount == 0 {
		return next.Proceed(ctx, src, pkt)
	}
	if _, err := f.tracker.Debit(ctx, src.ID, pkt.Amount, src.MinBalance); err != nil {
		if errors.Is(err, balance.ErrInsufficient) {
			return ilp.NewReject(ilp.CodeInsufficientLiquidity,
				"insufficient balance on source account", f.localAddress), nil
		}
		return nil, err
	}

	reply, err := next.Proceed(ctx, src, pkt)
	if err == nil {
		if _, ok := reply.(*ilp.Fulfill); ok {
			return reply, nil
		}
	}
	// The transfer did not complete; give the reservation back. A failed
	// reversal leaves the account under-credited and requires operator
	// intervention, hence the loud log.
	if _, cerr := f.tracker.Credit(ctx, src.ID, pkt.Amount); cerr != nil {
		f.logger.Error("FAILED TO REVERSE BALANCE RESERVATION, account is under-credited",
			"account", src.ID, "amount", pkt.Amount, "err", cerr)
	}
	return reply, err
}
