package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/config"
	"github.com/gcbackpack/csgogc/internal/core/event"
	"github.com/gcbackpack/csgogc/internal/net"
	"github.com/gcbackpack/csgogc/internal/persist"
)

func newCLIApp() *cli.App {
	return &cli.App{
		Name:  "csgogc",
		Usage: "CS:GO Game Coordinator client that keeps a live backpack",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the TOML config (default $" + config.EnvPath + " or " + config.DefaultPath + ")",
			},
		},
		Commands: []*cli.Command{
			runCmd(),
			replayCmd(),
			inspectCmd(),
			journalCmd(),
		},
	}
}

// setup loads the config and builds the logger every command starts with.
func setup(c *cli.Context) (*config.Config, *zap.Logger, string, error) {
	path := config.ResolvePath(c.String("config"))
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, path, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, path, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, path, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Connect through the relay and keep the backpack current until interrupted",
		Action: func(c *cli.Context) error {
			cfg, log, path, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()
			printBanner(path)

			ctx, stop := signalContext()
			defer stop()

			transport, err := dial(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer transport.Close()

			rt, err := newRuntime(ctx, cfg, transport, true, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			printReady("session running, Ctrl+C to stop")
			fmt.Println()
			err = rt.sess.Run(ctx)
			if errors.Is(err, context.Canceled) {
				log.Info("shutting down", zap.Int("items", rt.deps.Store.Len()))
				return nil
			}
			return err
		},
	}
}

func replayCmd() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Run a session over a recorded capture and print the resulting events",
		ArgsUsage: "<capture file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("replay: expected one capture file")
			}
			cfg, log, path, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()
			printBanner(path)

			replay, err := net.OpenReplay(c.Args().First())
			if err != nil {
				return err
			}
			defer replay.Close()

			ctx, stop := signalContext()
			defer stop()

			// a capture has no live account behind it
			rt, err := newRuntime(ctx, cfg, replay, false, log)
			if err != nil {
				return err
			}
			defer rt.Close()
			printEvents(rt.sess.Bus())

			if err := rt.sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			fmt.Println()
			printSection("Replay")
			printStat("Backpack items", rt.deps.Store.Len())
			printStat("Storage units", len(rt.deps.Store.StorageUnits()))
			printStat("Casket contents", rt.deps.Store.Caskets.Len())
			printStat("Messages sent", len(replay.Sent()))
			return nil
		},
	}
}

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect an item by its inspect link and print the preview data as JSON",
		ArgsUsage: "<inspect url>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Value: time.Minute,
				Usage: "overall time allowed for login, welcome and the inspect",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("inspect: expected one inspect url")
			}
			cfg, log, _, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signalContext()
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
			defer cancel()

			transport, err := dial(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer transport.Close()

			rt, err := newRuntime(ctx, cfg, transport, false, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			runCtx, stopRun := context.WithCancel(ctx)
			defer stopRun()
			go func() {
				if err := rt.sess.Run(runCtx); err != nil && runCtx.Err() == nil {
					log.Error("session stopped", zap.Error(err))
				}
			}()

			info, err := rt.client.InspectURL(ctx, c.Args().First())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}

func journalCmd() *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "Print the most recent journaled backpack events",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   20,
				Usage:   "number of events to print",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, log, _, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			db, err := persist.Open(ctx, cfg.Journal.Driver, cfg.Journal.DSN, log)
			if err != nil {
				return fmt.Errorf("journal: %w", err)
			}
			defer db.Close()
			if err := persist.RunMigrations(ctx, db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}

			entries, err := persist.NewJournal(db, log).Recent(ctx, c.Int("limit"))
			if err != nil {
				return err
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-12s  %-20d  def=%-5d  %s",
					e.At.Format("2006-01-02 15:04:05"), e.Kind, e.AssetID, e.DefIndex, e.Name)
				if e.CasketID != 0 {
					line += fmt.Sprintf("  casket=%d", e.CasketID)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func dial(ctx context.Context, cfg *config.Config, log *zap.Logger) (net.Transport, error) {
	relay, err := net.DialRelay(ctx, net.RelayConfig{
		URL:          cfg.Relay.URL,
		DialTimeout:  cfg.Relay.DialTimeout,
		WriteTimeout: cfg.Relay.WriteTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	printOK("relay connected: " + cfg.Relay.URL)

	if cfg.GC.CaptureFile == "" {
		return relay, nil
	}
	capture, err := net.NewCaptureWriter(cfg.GC.CaptureFile)
	if err != nil {
		relay.Close()
		return nil, fmt.Errorf("capture: %w", err)
	}
	printOK("recording to " + cfg.GC.CaptureFile)
	return net.Record(relay, capture), nil
}

func printEvents(bus *event.Bus) {
	event.Subscribe(bus, func(e event.GCReady) {
		fmt.Printf("ready         items=%d\n", e.Items)
	})
	event.Subscribe(bus, func(e event.GCDisconnect) {
		fmt.Printf("disconnect    %s\n", e.Reason)
	})
	event.Subscribe(bus, func(e event.ItemReceive) {
		fmt.Printf("receive       %d %s pos=%d\n", e.Item.AssetID, e.Item.Name, e.Item.Position)
	})
	event.Subscribe(bus, func(e event.ItemUpdate) {
		fmt.Printf("update        %d %s pos=%d->%d\n", e.After.AssetID, e.After.Name, e.Before.Position, e.After.Position)
	})
	event.Subscribe(bus, func(e event.ItemRemove) {
		fmt.Printf("remove        %d %s\n", e.Item.AssetID, e.Item.Name)
	})
}
