package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// DataDir is where the local node store keeps its database.
	DataDir string

	// FeedURL is the change feed WebSocket endpoint.
	FeedURL string

	// PeerURL is an optional remote graph peer HTTP endpoint. When set, the
	// node store reads and writes through the peer instead of local disk.
	PeerURL string

	// IndexerID is the public-key identity that owns listing nodes. It is
	// threaded explicitly through every component rather than held globally.
	IndexerID string

	// TabulatorID is the identity that owns per-thing counter nodes.
	// Defaults to IndexerID: a single process usually plays both roles.
	TabulatorID string

	// ListingSize caps the entries per ranked listing.
	ListingSize int

	// ListingCacheSize caps how many listings stay hydrated in memory.
	ListingCacheSize int

	// MetaCacheSize caps the per-thing aggregate cache.
	MetaCacheSize int

	// FlushInterval is the write-behind batch flush cadence.
	FlushInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             3000,
		DataDir:          "./data",
		FeedURL:          "ws://localhost:4444/gun",
		ListingSize:      1000,
		ListingCacheSize: 50000,
		MetaCacheSize:    10000,
		FlushInterval:    500 * time.Millisecond,
	}

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = port
	}

	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	if u := os.Getenv("FEED_URL"); u != "" {
		cfg.FeedURL = u
	}

	cfg.PeerURL = os.Getenv("PEER_URL")

	cfg.IndexerID = os.Getenv("INDEXER_ID")
	if cfg.IndexerID == "" {
		return nil, fmt.Errorf("INDEXER_ID is required")
	}

	cfg.TabulatorID = os.Getenv("TABULATOR_ID")
	if cfg.TabulatorID == "" {
		cfg.TabulatorID = cfg.IndexerID
	}

	if err := loadInt("LISTING_SIZE", &cfg.ListingSize); err != nil {
		return nil, err
	}
	if err := loadInt("LISTING_CACHE_SIZE", &cfg.ListingCacheSize); err != nil {
		return nil, err
	}
	if err := loadInt("META_CACHE_SIZE", &cfg.MetaCacheSize); err != nil {
		return nil, err
	}

	if ms := os.Getenv("FLUSH_INTERVAL_MS"); ms != "" {
		v, err := strconv.Atoi(ms)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid FLUSH_INTERVAL_MS: %q", ms)
		}
		cfg.FlushInterval = time.Duration(v) * time.Millisecond
	}

	return cfg, nil
}

func loadInt(name string, dst *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fmt.Errorf("invalid %s: %q", name, raw)
	}
	*dst = v
	return nil
}
