// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/govmarkets/futarchy/pkg/config"
	"github.com/govmarkets/futarchy/pkg/engine"
	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/log"
	"github.com/govmarkets/futarchy/pkg/metric"
	"github.com/govmarkets/futarchy/pkg/registry"
	"github.com/govmarkets/futarchy/pkg/server"
	"github.com/govmarkets/futarchy/pkg/spot"
	"github.com/govmarkets/futarchy/pkg/store"
)

var (
	configPath = flag.String("config", "", "Path to yaml config (defaults apply when empty)")
	listenAddr = flag.String("listen", ":8080", "HTTP listen address")
	archive    = flag.String("archive", "", "Sqlite archive path (archiving disabled when empty)")
	logLevel   = flag.String("log-level", "info", "Log level")

	spotFeeBps = flag.Uint64("spot-fee-bps", 30, "Spot pool swap fee, basis points")
	seedAsset  = flag.Uint64("seed-asset", 0, "Bootstrap asset liquidity for the spot pool")
	seedStable = flag.Uint64("seed-stable", 0, "Bootstrap stable liquidity for the spot pool")

	pairs = flag.String("pairs", "", "Conditional coin pairs to register, comma-separated ASSET/STABLE entries")

	streamInterval = flag.Duration("stream-interval", time.Second, "Websocket price stream cadence")

	// Version info
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	flag.Parse()
	fmt.Printf("Futarchy Daemon (futarchyd) %s (commit: %s)\n", Version, GitCommit)

	logger := log.NewWithLevel(*logLevel)
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Error("daemon exited", log.Err(err))
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	params := config.Default()
	if *configPath != "" {
		var err error
		params, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}

	reg, err := parsePairs(*pairs)
	if err != nil {
		return err
	}

	pool := spot.New(ids.Generate(), *spotFeeBps, logger)
	if *seedAsset > 0 && *seedStable > 0 {
		if _, err := pool.AddLiquidity(*seedAsset, *seedStable, 0); err != nil {
			return fmt.Errorf("bootstrap liquidity: %w", err)
		}
		logger.Info("spot pool bootstrapped",
			log.Uint64("asset", *seedAsset),
			log.Uint64("stable", *seedStable))
	}

	var recorder store.Recorder = store.NoOp{}
	if *archive != "" {
		sqlite, err := store.OpenSQLite(*archive)
		if err != nil {
			return err
		}
		defer sqlite.Close()
		recorder = sqlite
		logger.Info("archive enabled", log.String("path", *archive))
	}

	metrics := metric.New("futarchy")
	eng, err := engine.New(params, pool, reg, metrics, recorder, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         *listenAddr,
		Handler:      server.New(eng, metrics, *streamInterval, logger).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket streams hold the connection open
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", log.String("addr", *listenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", log.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func parsePairs(raw string) (*registry.Registry, error) {
	reg := registry.New()
	if raw == "" {
		return reg, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed pair %q, want ASSET/STABLE", entry)
		}
		if err := reg.Register(registry.Entry{
			Pair: registry.Pair{Asset: parts[0], Stable: parts[1]},
		}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
