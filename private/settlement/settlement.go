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

// Package settlement connects the connector to an external settlement
// engine. The engine is a sidecar process owning the actual money movement;
// the connector only relays peer.settle messages between the engine and the
// peer and notifies the engine of balance changes.
package settlement

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/private/serrors"
)

// Service relays settlement traffic for peer accounts.
type Service interface {
	// HandleMessage processes a peer.settle message received from the peer
	// and returns the response payload for the Fulfill.
	HandleMessage(ctx context.Context, from accounts.ID, message []byte) ([]byte, error)
	// NotifyBalance informs the engine of an account's new net balance so it
	// can settle when a threshold is crossed.
	NotifyBalance(ctx context.Context, id accounts.ID, balance int64) error
}

// Nop is the Service used when no settlement engine is configured. Messages
// are refused; balance notifications vanish.
type Nop struct{}

func (Nop) HandleMessage(ctx context.Context, from accounts.ID, message []byte) ([]byte, error) {
	return nil, serrors.New("no settlement engine configured", "account", from)
}

func (Nop) NotifyBalance(ctx context.Context, id accounts.ID, balance int64) error {
	return nil
}

// Engine is a Service backed by a settlement engine's HTTP API.
type Engine struct {
	baseURL string
	client  *http.Client
}

// NewEngine creates a client for the engine at baseURL. A nil httpClient
// uses http.DefaultClient.
func NewEngine(baseURL string, httpClient *http.Client) *Engine {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Engine{baseURL: baseURL, client: httpClient}
}

// HandleMessage forwards the peer's message to the engine and returns the
// engine's response body.
func (e *Engine) HandleMessage(
	ctx context.Context,
	from accounts.ID,
	message []byte,
) ([]byte, error) {
	body, err := e.post(ctx,
		"/accounts/"+string(from)+"/messages", "application/octet-stream", message)
	if err != nil {
		return nil, serrors.Wrap("relaying settlement message", err, "account", from)
	}
	return body, nil
}

// NotifyBalance reports the account's balance to the engine.
func (e *Engine) NotifyBalance(ctx context.Context, id accounts.ID, balance int64) error {
	_, err := e.post(ctx,
		"/accounts/"+string(id)+"/balance", "text/plain",
		[]byte(strconv.FormatInt(balance, 10)))
	if err != nil {
		return serrors.Wrap("notifying settlement engine", err, "account", id)
	}
	return nil
}

func (e *Engine) post(
	ctx context.Context,
	path, contentType string,
	payload []byte,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, serrors.New("settlement engine error",
			"status", resp.StatusCode, "body", string(body))
	}
	return body, nil
}
