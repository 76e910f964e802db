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

// Package accounts persists account settings in sqlite and serves hot
// reads through an expiring cache.
package accounts

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/private/serrors"
	"github.com/interledger/connector/private/storage/db"
)

// SchemaVersion is written to the sqlite user_version pragma.
const SchemaVersion = 1

// Schema is the sqlite schema of the accounts store.
const Schema = `
CREATE TABLE accounts (
	id TEXT NOT NULL PRIMARY KEY,
	relationship TEXT NOT NULL,
	asset_code TEXT NOT NULL,
	asset_scale INTEGER NOT NULL,
	ilp_address TEXT NOT NULL DEFAULT '',
	max_packet_amount INTEGER NOT NULL DEFAULT 0,
	rate_limit_per_second REAL NOT NULL DEFAULT 0,
	min_balance INTEGER NOT NULL DEFAULT 0,
	send_routes INTEGER NOT NULL DEFAULT 0,
	receive_routes INTEGER NOT NULL DEFAULT 0,
	link_type TEXT NOT NULL DEFAULT '',
	custom TEXT NOT NULL DEFAULT '{}'
);
`

// ErrNotFound is returned when no account exists under the requested id.
var ErrNotFound = serrors.New("account not found")

// Store is the sqlite-backed account settings store.
type Store struct {
	db *db.Sqlite
}

// NewStore opens (and if necessary initializes) the accounts database at
// path.
func NewStore(path string, inMemory bool) (*Store, error) {
	sqlite, err := db.NewSqlite(path, inMemory)
	if err != nil {
		return nil, err
	}
	if err := sqlite.Setup(Schema, SchemaVersion); err != nil {
		sqlite.Close()
		return nil, serrors.Wrap("initializing accounts database", err)
	}
	return &Store{db: sqlite}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert validates and writes the settings, replacing an existing row with
// the same id.
func (s *Store) Upsert(ctx context.Context, settings *accounts.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	custom, err := json.Marshal(settings.Custom)
	if err != nil {
		return serrors.Wrap("encoding custom settings", err, "id", settings.ID)
	}
	_, err = s.db.Full.ExecContext(ctx, `
		INSERT INTO accounts (id, relationship, asset_code, asset_scale,
			ilp_address, max_packet_amount, rate_limit_per_second,
			min_balance, send_routes, receive_routes, link_type, custom)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			relationship = excluded.relationship,
			asset_code = excluded.asset_code,
			asset_scale = excluded.asset_scale,
			ilp_address = excluded.ilp_address,
			max_packet_amount = excluded.max_packet_amount,
			rate_limit_per_second = excluded.rate_limit_per_second,
			min_balance = excluded.min_balance,
			send_routes = excluded.send_routes,
			receive_routes = excluded.receive_routes,
			link_type = excluded.link_type,
			custom = excluded.custom`,
		settings.ID, settings.Relationship, settings.AssetCode,
		settings.AssetScale, settings.ILPAddress, settings.MaxPacketAmount,
		settings.RateLimitPerSecond, settings.MinBalance, settings.SendRoutes,
		settings.ReceiveRoutes, settings.LinkType, string(custom))
	if err != nil {
		return serrors.Wrap("upserting account", err, "id", settings.ID)
	}
	return nil
}

// Get loads the settings for one account.
func (s *Store) Get(ctx context.Context, id accounts.ID) (*accounts.Settings, error) {
	row := s.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, relationship, asset_code, asset_scale, ilp_address,
			max_packet_amount, rate_limit_per_second, min_balance,
			send_routes, receive_routes, link_type, custom
		FROM accounts WHERE id = ?`, id)
	settings, err := scanSettings(row.Scan)
	if err == sql.ErrNoRows {
		return nil, serrors.Wrap("loading account", ErrNotFound, "id", id)
	}
	if err != nil {
		return nil, serrors.Wrap("loading account", err, "id", id)
	}
	return settings, nil
}

// Delete removes the account. Deleting an unknown account is a no-op.
func (s *Store) Delete(ctx context.Context, id accounts.ID) error {
	if _, err := s.db.Full.ExecContext(ctx,
		"DELETE FROM accounts WHERE id = ?", id); err != nil {
		return serrors.Wrap("deleting account", err, "id", id)
	}
	return nil
}

// List returns all accounts ordered by id.
func (s *Store) List(ctx context.Context) ([]*accounts.Settings, error) {
	rows, err := s.db.ReadOnly.QueryContext(ctx, `
		SELECT id, relationship, asset_code, asset_scale, ilp_address,
			max_packet_amount, rate_limit_per_second, min_balance,
			send_routes, receive_routes, link_type, custom
		FROM accounts ORDER BY id`)
	if err != nil {
		return nil, serrors.Wrap("listing accounts", err)
	}
	defer rows.Close()
	var all []*accounts.Settings
	for rows.Next() {
		settings, err := scanSettings(rows.Scan)
		if err != nil {
			return nil, serrors.Wrap("scanning account row", err)
		}
		all = append(all, settings)
	}
	if err := rows.Err(); err != nil {
		return nil, serrors.Wrap("listing accounts", err)
	}
	return all, nil
}

func scanSettings(scan func(...any) error) (*accounts.Settings, error) {
	var s accounts.Settings
	var relationship, address, custom string
	if err := scan(&s.ID, &relationship, &s.AssetCode, &s.AssetScale,
		&address, &s.MaxPacketAmount, &s.RateLimitPerSecond, &s.MinBalance,
		&s.SendRoutes, &s.ReceiveRoutes, &s.LinkType, &custom); err != nil {
		return nil, err
	}
	rel, err := accounts.ParseRelationship(relationship)
	if err != nil {
		return nil, err
	}
	s.Relationship = rel
	if address != "" {
		if s.ILPAddress, err = ilp.ParseAddress(address); err != nil {
			return nil, serrors.Wrap("parsing stored ilp address", err)
		}
	}
	if err := json.Unmarshal([]byte(custom), &s.Custom); err != nil {
		return nil, serrors.Wrap("decoding custom settings", err)
	}
	return &s, nil
}
