package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/client"
	"github.com/gcbackpack/csgogc/internal/config"
	"github.com/gcbackpack/csgogc/internal/core/event"
	"github.com/gcbackpack/csgogc/internal/data"
	"github.com/gcbackpack/csgogc/internal/handler"
	"github.com/gcbackpack/csgogc/internal/inventory"
	"github.com/gcbackpack/csgogc/internal/net"
	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/persist"
	"github.com/gcbackpack/csgogc/internal/scripting"
)

// runtime is one wired session with everything hanging off its bus.
type runtime struct {
	sess   *net.Session
	deps   *handler.Deps
	client *client.Client

	closers []func()
}

// newRuntime wires a session over transport. live enables the pieces that
// only make sense for a real account: inventory fetches, the journal and
// the metrics endpoint.
func newRuntime(ctx context.Context, cfg *config.Config, transport net.Transport, live bool, log *zap.Logger) (*runtime, error) {
	rt := &runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	printSection("Data")
	items, err := data.LoadItemTable(cfg.Data.ItemCatalog)
	switch {
	case err == nil:
		printStat("Item definitions", items.Count())
	case errors.Is(err, os.ErrNotExist):
		log.Warn("item catalog missing, names come from the community inventory only",
			zap.String("path", cfg.Data.ItemCatalog))
		printSkip("item catalog not found")
	default:
		return nil, fmt.Errorf("item catalog: %w", err)
	}
	fmt.Println()

	printSection("Session")
	deps := &handler.Deps{
		Store:        backpack.NewStore(nil),
		Items:        items,
		Log:          log,
		FetchTimeout: cfg.Inventory.HTTPTimeout*2 + cfg.Inventory.Backoff,
	}
	if live && cfg.Inventory.SteamID != 0 {
		deps.Fetcher = inventory.New(inventory.Config{
			BaseURL:     cfg.Inventory.BaseURL,
			SteamID:     cfg.Inventory.SteamID,
			Language:    cfg.Inventory.Language,
			Count:       cfg.Inventory.Count,
			Backoff:     cfg.Inventory.Backoff,
			HTTPTimeout: cfg.Inventory.HTTPTimeout,
		}, log)
		printOK(fmt.Sprintf("inventory fetches for %d", cfg.Inventory.SteamID))
	} else {
		printSkip("inventory fetches disabled")
	}

	reg := packet.NewRegistry(log)
	handler.RegisterAll(reg, deps)
	printStat("Message handlers", reg.Len())

	bus := event.NewBus()
	rt.sess = net.NewSession(net.SessionConfig{
		AppID:           cfg.GC.AppID,
		ProtocolVersion: cfg.GC.ProtocolVersion,
		HelloInterval:   cfg.GC.HelloInterval,
	}, transport, reg, bus, log)
	rt.deps = deps
	rt.client = client.New(rt.sess, deps, client.Config{
		RequestTimeout:    cfg.GC.RequestTimeout,
		CasketWaitTimeout: cfg.GC.CasketWaitTimeout,
		InspectCacheSize:  cfg.GC.InspectCacheSize,
		InspectCacheTTL:   cfg.GC.InspectCacheTTL,
	}, log)
	logLifecycle(bus, log)
	printOK("session " + rt.sess.ID)
	fmt.Println()

	printSection("Extensions")
	if live && cfg.Journal.Enabled {
		db, err := persist.Open(ctx, cfg.Journal.Driver, cfg.Journal.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		rt.closers = append(rt.closers, db.Close)
		if err := persist.RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		persist.NewJournal(db, log).Attach(bus, rt.sess.ID)
		printOK("journal on " + cfg.Journal.Driver)
	} else {
		printSkip("journal disabled")
	}

	if cfg.Scripting.Dir != "" {
		engine, err := scripting.NewEngine(cfg.Scripting.Dir, items, log)
		if err != nil {
			return nil, fmt.Errorf("scripting: %w", err)
		}
		rt.closers = append(rt.closers, engine.Close)
		engine.Attach(bus)
		printOK("lua hooks from " + cfg.Scripting.Dir)
	} else {
		printSkip("lua hooks disabled")
	}

	if live && cfg.Metrics.Listen != "" {
		rt.closers = append(rt.closers, serveMetrics(cfg.Metrics.Listen, log))
		printOK("metrics on " + cfg.Metrics.Listen + "/metrics")
	} else {
		printSkip("metrics endpoint disabled")
	}
	fmt.Println()

	ok = true
	return rt, nil
}

// Close releases everything newRuntime opened, newest first.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func serveMetrics(addr string, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func logLifecycle(bus *event.Bus, log *zap.Logger) {
	event.Subscribe(bus, func(e event.GCConnect) {
		log.Info("gc welcomed session", zap.String("session", e.SessionID))
	})
	event.Subscribe(bus, func(e event.GCReady) {
		log.Info("backpack ready", zap.String("session", e.SessionID), zap.Int("items", e.Items))
	})
	event.Subscribe(bus, func(e event.GCDisconnect) {
		log.Warn("gc session lost", zap.String("session", e.SessionID), zap.String("reason", e.Reason))
	})
}
