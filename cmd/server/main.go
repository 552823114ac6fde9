package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blackmichael/graph-listings/internal/batch"
	"github.com/blackmichael/graph-listings/internal/config"
	"github.com/blackmichael/graph-listings/internal/feed"
	"github.com/blackmichael/graph-listings/internal/httpserver"
	"github.com/blackmichael/graph-listings/internal/indexer"
	"github.com/blackmichael/graph-listings/internal/listing"
	"github.com/blackmichael/graph-listings/internal/metrics"
	"github.com/blackmichael/graph-listings/internal/peer"
	"github.com/blackmichael/graph-listings/internal/store"
	"github.com/blackmichael/graph-listings/internal/tabulator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up the node store (remote peer when configured, local disk otherwise)
	var st store.Store
	if cfg.PeerURL != "" {
		st = peer.NewClient(cfg.PeerURL)
		logger.Info("using remote graph peer", "url", cfg.PeerURL)
	} else {
		st, err = store.NewBadgerStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open node store: %w", err)
		}
		logger.Info("opened node store", "dir", cfg.DataDir)
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start the write-behind batch writer in the background
	writer := batch.NewWriter(st, cfg.FlushInterval, logger, collector)
	go writer.Run(ctx)

	listings := listing.NewCache(st, cfg.ListingSize, cfg.ListingCacheSize, logger)
	tab := tabulator.NewTabulator(st, writer, cfg.TabulatorID, cfg.IndexerID, cfg.MetaCacheSize, logger, collector)
	ix := indexer.NewIndexer(listings, writer, cfg.IndexerID, logger, collector)

	// Start the change feed driver in the background
	driver := feed.NewDriver(cfg.FeedURL, tab, ix, st, logger, collector)
	go func() {
		if err := driver.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("change feed driver exited with error", "error", err)
		}
	}()

	// Start the HTTP server
	server := httpserver.NewServer(cfg, ix, registry, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started",
		"port", cfg.Port,
		"indexer", cfg.IndexerID,
		"tabulator", cfg.TabulatorID,
	)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}
	writer.Flush(context.Background())

	return nil
}
