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

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	pkgaccounts "github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/private/storage/accounts"
)

// accountJSON is the admin API representation of account settings.
type accountJSON struct {
	ID                 string            `json:"id"`
	Relationship       string            `json:"relationship"`
	AssetCode          string            `json:"asset_code"`
	AssetScale         uint8             `json:"asset_scale"`
	ILPAddress         string            `json:"ilp_address,omitempty"`
	MaxPacketAmount    uint64            `json:"max_packet_amount,omitempty"`
	RateLimitPerSecond float64           `json:"rate_limit_per_second,omitempty"`
	MinBalance         int64             `json:"min_balance,omitempty"`
	SendRoutes         bool              `json:"send_routes,omitempty"`
	ReceiveRoutes      bool              `json:"receive_routes,omitempty"`
	LinkType           string            `json:"link_type,omitempty"`
	Custom             map[string]string `json:"custom,omitempty"`
}

func toJSON(s *pkgaccounts.Settings) accountJSON {
	return accountJSON{
		ID:                 string(s.ID),
		Relationship:       string(s.Relationship),
		AssetCode:          s.AssetCode,
		AssetScale:         s.AssetScale,
		ILPAddress:         string(s.ILPAddress),
		MaxPacketAmount:    s.MaxPacketAmount,
		RateLimitPerSecond: s.RateLimitPerSecond,
		MinBalance:         s.MinBalance,
		SendRoutes:         s.SendRoutes,
		ReceiveRoutes:      s.ReceiveRoutes,
		LinkType:           s.LinkType,
		Custom:             s.Custom,
	}
}

func (a accountJSON) toSettings() (*pkgaccounts.Settings, error) {
	settings := &pkgaccounts.Settings{
		ID:                 pkgaccounts.ID(a.ID),
		Relationship:       pkgaccounts.Relationship(a.Relationship),
		AssetCode:          a.AssetCode,
		AssetScale:         a.AssetScale,
		MaxPacketAmount:    a.MaxPacketAmount,
		RateLimitPerSecond: a.RateLimitPerSecond,
		MinBalance:         a.MinBalance,
		SendRoutes:         a.SendRoutes,
		ReceiveRoutes:      a.ReceiveRoutes,
		LinkType:           a.LinkType,
		Custom:             a.Custom,
	}
	if a.ILPAddress != "" {
		addr, err := ilp.ParseAddress(a.ILPAddress)
		if err != nil {
			return nil, err
		}
		settings.ILPAddress = addr
	}
	return settings, nil
}

// accountsHandler is the admin CRUD API over the persisted account settings.
// Writes invalidate the loading cache so the data plane picks them up within
// one request instead of one TTL.
type accountsHandler struct {
	store *accounts.Store
	cache *accounts.LoadingCache
}

func (h accountsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/accounts")
	id = strings.Trim(id, "/")
	switch {
	case id == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case id == "" && r.Method == http.MethodPost:
		h.upsert(w, r)
	case id != "" && r.Method == http.MethodGet:
		h.get(w, r, pkgaccounts.ID(id))
	case id != "" && r.Method == http.MethodDelete:
		h.delete(w, r, pkgaccounts.ID(id))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h accountsHandler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]accountJSON, 0, len(all))
	for _, s := range all {
		out = append(out, toJSON(s))
	}
	writeJSON(w, out)
}

func (h accountsHandler) upsert(w http.ResponseWriter, r *http.Request) {
	var body accountJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	settings, err := body.toSettings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.Upsert(r.Context(), settings); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.cache.Invalidate(settings.ID)
	writeJSON(w, toJSON(settings))
}

func (h accountsHandler) get(w http.ResponseWriter, r *http.Request, id pkgaccounts.ID) {
	settings, err := h.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		http.Error(w, "no such account", http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, toJSON(settings))
	}
}

func (h accountsHandler) delete(w http.ResponseWriter, r *http.Request, id pkgaccounts.ID) {
	if err := h.store.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.cache.Invalidate(id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
