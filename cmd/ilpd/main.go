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

// Command ilpd runs the Interledger connector daemon: the packet switch,
// the route broadcaster and the admin/metrics endpoint.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	controlccp "github.com/interledger/connector/control/ccp"
	"github.com/interledger/connector/control/routing"
	pkgaccounts "github.com/interledger/connector/pkg/accounts"
	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/log"
	"github.com/interledger/connector/pkg/private/serrors"
	"github.com/interledger/connector/private/config"
	"github.com/interledger/connector/private/link"
	"github.com/interledger/connector/private/settlement"
	"github.com/interledger/connector/private/storage/accounts"
	"github.com/interledger/connector/private/storage/balance"
	"github.com/interledger/connector/router"
)

// pingAccount is the synthetic account the connector's own address routes
// to; its link is the in-process loopback. diagAccount is the synthetic
// source identity for locally originated diagnostic packets.
const (
	pingAccount pkgaccounts.ID = "ping"
	diagAccount pkgaccounts.ID = "diag"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "ilpd",
		Short:         "Interledger connector daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := log.Setup(cfg.Logging); err != nil {
				return serrors.Wrap("setting up logging", err)
			}
			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "ilpd.toml", "config file")
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.Root()
	localAddress := ilp.MustParseAddress(cfg.Connector.ILPAddress)

	store, err := accounts.NewStore(cfg.Storage.AccountsDB, false)
	if err != nil {
		return serrors.Wrap("opening accounts store", err)
	}
	defer store.Close()
	cache := accounts.NewLoadingCache(store, cfg.Storage.AccountCacheTTL.Duration)
	lookup := overlayLookup{
		base: cache,
		locals: map[pkgaccounts.ID]*pkgaccounts.Settings{
			pingAccount: {
				ID:           pingAccount,
				Relationship: pkgaccounts.Child,
				AssetCode:    "PING",
				AssetScale:   9,
			},
			diagAccount: {
				ID:           diagAccount,
				Relationship: pkgaccounts.Child,
				AssetCode:    "PING",
				AssetScale:   9,
			},
		},
	}

	var tracker balance.Tracker = balance.NewMemory()
	if cfg.Storage.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		defer client.Close()
		tracker = balance.NewRedis(client, "")
	}

	var settle settlement.Service = settlement.Nop{}
	if cfg.Settlement.EngineURL != "" {
		settle = settlement.NewEngine(cfg.Settlement.EngineURL, nil)
	}

	links := link.NewManager(logger.New("component", "links"))

	localTable := routing.NewTable()
	outgoingTable := routing.NewTable()
	broadcaster := controlccp.NewBroadcaster(controlccp.Config{
		LocalAddress:      localAddress,
		PingAccount:       pingAccount,
		BroadcastInterval: cfg.Connector.BroadcastInterval.Duration,
		RouteExpiry:       cfg.Connector.RouteExpiry.Duration,
		RoutingSecret:     routingSecret(cfg, logger),
		StaticRoutes:      staticRoutes(cfg),
	}, lookup, links, localTable, outgoingTable,
		logger.New("component", "broadcaster"), controlccp.Metrics{})
	links.Subscribe(trackingListener{broadcaster: broadcaster})

	sw := router.NewSwitch(router.SwitchConfig{
		LocalAddress:        localAddress,
		AllowedDestinations: allowedDestinations(cfg),
		MinMessageWindow:    cfg.Connector.MinMessageWindow.Duration,
		MaxHoldTime:         cfg.Connector.MaxHoldTime.Duration,
	}, lookup, links, routing.NewPaymentRouter(localTable), tracker,
		broadcaster, settle, router.NewMetrics(),
		logger.New("component", "switch"))

	broadcaster.Start()
	defer broadcaster.Close()
	links.Register(ctx, pingAccount, link.NewLoopback(localAddress))

	if cfg.Metrics.Prometheus != "" {
		go serveAdmin(cfg.Metrics.Prometheus, store, cache, logger)
	}

	selfPing(ctx, sw, localAddress, logger)
	logger.Info("Connector up", "address", localAddress)
	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// overlayLookup serves the synthetic in-process accounts from memory and
// everything else from the cache.
type overlayLookup struct {
	base   *accounts.LoadingCache
	locals map[pkgaccounts.ID]*pkgaccounts.Settings
}

func (o overlayLookup) GetAccount(
	ctx context.Context,
	id pkgaccounts.ID,
) (*pkgaccounts.Settings, bool) {
	if settings, ok := o.locals[id]; ok {
		return settings, true
	}
	return o.base.GetAccount(ctx, id)
}

// trackingListener feeds link connectivity into the route broadcaster.
type trackingListener struct {
	broadcaster *controlccp.Broadcaster
}

func (l trackingListener) LinkConnected(ctx context.Context, id pkgaccounts.ID) {
	if id == pingAccount {
		return
	}
	if err := l.broadcaster.TrackAccount(ctx, id); err != nil {
		log.FromCtx(ctx).Error("Tracking connected account", "account", id, "err", err)
	}
}

func (l trackingListener) LinkDisconnected(ctx context.Context, id pkgaccounts.ID) {
	if id == pingAccount {
		return
	}
	l.broadcaster.UntrackAccount(id)
}

func routingSecret(cfg *config.Config, logger log.Logger) []byte {
	if cfg.Connector.RoutingSecret != "" {
		return []byte(cfg.Connector.RoutingSecret)
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}
	logger.Info("No routing secret configured, generated an ephemeral one")
	return secret
}

func staticRoutes(cfg *config.Config) []controlccp.StaticRoute {
	routes := make([]controlccp.StaticRoute, 0, len(cfg.Connector.StaticRoutes))
	for _, sr := range cfg.Connector.StaticRoutes {
		routes = append(routes, controlccp.StaticRoute{
			Prefix:  ilp.MustParsePrefix(sr.Prefix),
			NextHop: pkgaccounts.ID(sr.Account),
		})
	}
	return routes
}

func allowedDestinations(cfg *config.Config) []ilp.AddressPrefix {
	prefixes := make([]ilp.AddressPrefix, 0, len(cfg.Connector.AllowedDestinations))
	for _, p := range cfg.Connector.AllowedDestinations {
		prefixes = append(prefixes, ilp.MustParsePrefix(p))
	}
	return prefixes
}

// selfPing pushes one zero-amount packet addressed to ourselves through the
// whole filter chain and the loopback link. A failure means the core is
// miswired and deserves a loud log before any peer traffic arrives.
func selfPing(
	ctx context.Context,
	sw *router.Switch,
	localAddress ilp.Address,
	logger log.Logger,
) {
	pkt := &ilp.Prepare{
		Destination:        localAddress,
		ExecutionCondition: ilp.PeerProtocolCondition,
		ExpiresAt:          time.Now().Add(30 * time.Second),
	}
	reply := sw.Route(ctx, diagAccount, pkt)
	if _, ok := reply.(*ilp.Fulfill); !ok {
		logger.Error("Startup self-ping failed", "reply", reply)
		return
	}
	logger.Debug("Startup self-ping fulfilled")
}

// serveAdmin exposes Prometheus metrics and a minimal account admin API.
func serveAdmin(
	addr string,
	store *accounts.Store,
	cache *accounts.LoadingCache,
	logger log.Logger,
) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/accounts", accountsHandler{store: store, cache: cache})
	mux.Handle("/accounts/", accountsHandler{store: store, cache: cache})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("Admin endpoint up", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Admin endpoint failed", "err", err)
	}
}
