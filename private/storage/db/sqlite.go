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

// Package db holds the shared sqlite plumbing of the connector's
// persistence backends.
package db

import (
	"database/sql"
	"net/url"
	"runtime"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/interledger/connector/pkg/private/serrors"
)

// Sqlite bundles a single-connection write pool with a wider read pool.
// Limiting writes to one open connection avoids lock contention under WAL.
type Sqlite struct {
	Full     *sql.DB
	ReadOnly *sql.DB
}

// NewSqlite opens the database at path. With inMemory set, path names a
// shared in-memory database instead of a file; tests must use distinct
// names per database.
func NewSqlite(path string, inMemory bool) (*Sqlite, error) {
	name, hadScheme := strings.CutPrefix(path, "file:")

	params := make(url.Values)
	// Transactions start as write transactions up front so a locked
	// database yields a busy wait instead of an immediate SQLITE_BUSY.
	params.Add("_txlock", "immediate")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "busy_timeout(1000)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "foreign_keys(1)")
	if inMemory {
		params.Add("mode", "memory")
		// Both pools must see the same in-memory database.
		params.Add("cache", "shared")
	}

	connURL := path + "?" + params.Encode()
	if !hadScheme {
		connURL = "file:" + connURL
	}

	write, err := sql.Open("sqlite", connURL)
	if err != nil {
		return nil, serrors.Wrap("opening write pool", err, "db", name)
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite", connURL)
	if err != nil {
		write.Close()
		return nil, serrors.Wrap("opening read pool", err, "db", name)
	}
	read.SetMaxOpenConns(max(4, runtime.NumCPU()))

	return &Sqlite{Full: write, ReadOnly: read}, nil
}

// Setup applies the schema on a fresh database and records its version in
// the user_version pragma. Opening a database with a different schema
// version is an error; there are no migrations.
func (db *Sqlite) Setup(schema string, schemaVersion int) error {
	var existing int
	if err := db.Full.QueryRow("PRAGMA user_version;").Scan(&existing); err != nil {
		return serrors.Wrap("reading schema version", err)
	}
	switch {
	case existing == 0:
		if _, err := db.Full.Exec(schema); err != nil {
			return serrors.Wrap("applying schema", err)
		}
		if _, err := db.Full.Exec(
			"PRAGMA user_version = " + strconv.Itoa(schemaVersion)); err != nil {
			return serrors.Wrap("writing schema version", err)
		}
		return nil
	case existing != schemaVersion:
		return serrors.New("schema version mismatch",
			"expected", schemaVersion, "have", existing)
	default:
		return nil
	}
}

// Close closes both pools.
func (db *Sqlite) Close() error {
	errWrite := db.Full.Close()
	errRead := db.ReadOnly.Close()
	if errWrite != nil {
		return serrors.Wrap("closing write pool", errWrite)
	}
	if errRead != nil {
		return serrors.Wrap("closing read pool", errRead)
	}
	return nil
}
