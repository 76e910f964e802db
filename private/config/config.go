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

// Package config defines the connector's TOML configuration. Every section
// follows the same pattern: InitDefaults fills unset fields, Validate
// rejects inconsistent ones.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/pkg/private/serrors"
)

// Duration wraps time.Duration so TOML values can be written in the usual
// "30s" / "5m" notation.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return serrors.Wrap("parsing duration", err, "input", string(text))
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the top-level connector configuration.
type Config struct {
	Logging    log.Config `toml:"log,omitempty"`
	Metrics    Metrics    `toml:"metrics,omitempty"`
	Connector  Connector  `toml:"connector,omitempty"`
	Storage    Storage    `toml:"storage,omitempty"`
	Settlement Settlement `toml:"settlement,omitempty"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Prometheus is the address to serve /metrics on. Empty disables the
	// endpoint.
	Prometheus string `toml:"prometheus,omitempty"`
}

// Connector configures the packet switch and the routing control plane.
type Connector struct {
	// ILPAddress is this connector's own address, e.g. "g.mycorp.conn1".
	ILPAddress string `toml:"ilp_address,omitempty"`
	// RoutingSecret seeds route auth values. Generated at random when
	// empty, which breaks auth continuity across restarts.
	RoutingSecret string `toml:"routing_secret,omitempty"`

	BroadcastInterval Duration `toml:"broadcast_interval,omitempty"`
	RouteExpiry       Duration `toml:"route_expiry,omitempty"`
	MinMessageWindow  Duration `toml:"min_message_window,omitempty"`
	MaxHoldTime       Duration `toml:"max_hold_time,omitempty"`

	// AllowedDestinations restricts routable destination prefixes. Empty
	// admits everything.
	AllowedDestinations []string `toml:"allowed_destinations,omitempty"`

	StaticRoutes []StaticRoute `toml:"static_routes,omitempty"`
}

// StaticRoute pins a prefix to an account, overriding learned routes.
type StaticRoute struct {
	Prefix  string `toml:"prefix"`
	Account string `toml:"account"`
}

// Storage configures the persistence backends.
type Storage struct {
	// AccountsDB is the path of the sqlite accounts database.
	AccountsDB string `toml:"accounts_db,omitempty"`
	// AccountCacheTTL bounds how stale cached account settings may be.
	AccountCacheTTL Duration `toml:"account_cache_ttl,omitempty"`
	// RedisAddr enables the shared Redis balance backend. Empty uses the
	// in-process tracker.
	RedisAddr string `toml:"redis_addr,omitempty"`
}

// Settlement configures the settlement engine sidecar.
type Settlement struct {
	// EngineURL is the base URL of the engine's HTTP API. Empty disables
	// settlement.
	EngineURL string `toml:"engine_url,omitempty"`
}

// InitDefaults fills all unset fields with production defaults.
func (cfg *Config) InitDefaults() {
	if cfg.Connector.BroadcastInterval.Duration == 0 {
		cfg.Connector.BroadcastInterval.Duration = 30 * time.Second
	}
	if cfg.Connector.RouteExpiry.Duration == 0 {
		cfg.Connector.RouteExpiry.Duration = 45 * time.Second
	}
	if cfg.Connector.MinMessageWindow.Duration == 0 {
		cfg.Connector.MinMessageWindow.Duration = time.Second
	}
	if cfg.Connector.MaxHoldTime.Duration == 0 {
		cfg.Connector.MaxHoldTime.Duration = 30 * time.Second
	}
	if cfg.Storage.AccountsDB == "" {
		cfg.Storage.AccountsDB = "connector-accounts.db"
	}
	if cfg.Storage.AccountCacheTTL.Duration == 0 {
		cfg.Storage.AccountCacheTTL.Duration = 15 * time.Second
	}
}

// Validate checks all sections for consistency.
func (cfg *Config) Validate() error {
	if cfg.Connector.ILPAddress == "" {
		return serrors.New("connector.ilp_address must be set")
	}
	if _, err := ilp.ParseAddress(cfg.Connector.ILPAddress); err != nil {
		return serrors.Wrap("validating connector.ilp_address", err)
	}
	for _, p := range cfg.Connector.AllowedDestinations {
		if _, err := ilp.ParsePrefix(p); err != nil {
			return serrors.Wrap("validating allowed destination", err, "prefix", p)
		}
	}
	for _, sr := range cfg.Connector.StaticRoutes {
		if _, err := ilp.ParsePrefix(sr.Prefix); err != nil {
			return serrors.Wrap("validating static route prefix", err, "prefix", sr.Prefix)
		}
		if sr.Account == "" {
			return serrors.New("static route without account", "prefix", sr.Prefix)
		}
	}
	if cfg.Connector.RouteExpiry.Duration <= cfg.Connector.BroadcastInterval.Duration {
		return serrors.New("route_expiry must exceed broadcast_interval",
			"route_expiry", cfg.Connector.RouteExpiry.Duration,
			"broadcast_interval", cfg.Connector.BroadcastInterval.Duration)
	}
	return nil
}

// Load reads, parses, defaults and validates the config file at path.
// Unknown keys are rejected to catch typos early.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.Wrap("reading config file", err, "path", path)
	}
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, serrors.Wrap("parsing config file", err, "path", path)
	}
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, serrors.Wrap("validating config", err, "path", path)
	}
	return &cfg, nil
}
