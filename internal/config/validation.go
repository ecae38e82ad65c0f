package config

import (
	"fmt"
	"net/url"

	"github.com/LeJamon/xrpl-ingest/internal/storage/compression"
)

// ValidateConfig performs validation on the complete configuration
func ValidateConfig(config *Config) error {
	if err := validateSource(&config.Source); err != nil {
		return fmt.Errorf("source config validation failed: %w", err)
	}
	if err := validateIngest(&config.Ingest); err != nil {
		return fmt.Errorf("ingest config validation failed: %w", err)
	}
	if err := validateStorage(&config.Storage); err != nil {
		return fmt.Errorf("storage config validation failed: %w", err)
	}
	if err := validateLog(&config.Log); err != nil {
		return fmt.Errorf("log config validation failed: %w", err)
	}
	if config.Metrics.Enabled && config.Metrics.Address == "" {
		return fmt.Errorf("metrics config validation failed: address is required when enabled")
	}
	return nil
}

func validateSource(s *SourceConfig) error {
	if len(s.Servers) == 0 {
		return fmt.Errorf("at least one server is required")
	}
	for _, server := range s.Servers {
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid server %q: %w", server, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("server %q must use ws:// or wss://", server)
		}
	}
	if s.RequestTimeout < 0 || s.PingInterval < 0 || s.ReconnectDelay < 0 {
		return fmt.Errorf("durations cannot be negative")
	}
	return nil
}

func validateIngest(i *IngestConfig) error {
	if i.QueueLength < 1 {
		return fmt.Errorf("queue_length must be at least 1, got %d", i.QueueLength)
	}
	if i.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", i.MaxAttempts)
	}
	if i.GapChunkSize < 1 {
		return fmt.Errorf("gap_chunk_size must be at least 1, got %d", i.GapChunkSize)
	}
	if i.MaxGapSize < 1 {
		return fmt.Errorf("max_gap_size must be at least 1, got %d", i.MaxGapSize)
	}
	if i.MaxRestarts < 0 {
		return fmt.Errorf("max_restarts cannot be negative")
	}
	if i.FetchTimeout <= 0 || i.RetryDelay < 0 {
		return fmt.Errorf("fetch_timeout must be positive and retry_delay non-negative")
	}
	if i.LiveStartIndex != 0 && i.LiveStartIndex < i.GenesisLedger {
		return fmt.Errorf("live_start_index %d precedes genesis ledger %d", i.LiveStartIndex, i.GenesisLedger)
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	switch s.Backend {
	case "pebble", "leveldb":
		if s.Path == "" {
			return fmt.Errorf("path is required for the %s backend", s.Backend)
		}
		if !compression.IsAvailable(s.Compression) {
			return fmt.Errorf("unknown compression %q", s.Compression)
		}
	case "sqlite":
		if s.Path == "" {
			return fmt.Errorf("path is required for the sqlite backend")
		}
	case "postgres":
		pg := s.Postgres.Clone()
		pg.Driver = "postgres"
		if err := pg.Validate(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	default:
		return fmt.Errorf("unknown backend %q (supported: pebble, leveldb, postgres, sqlite)", s.Backend)
	}
	return nil
}

func validateLog(l *LogConfig) error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level %q", l.Level)
	}
	switch l.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid format %q", l.Format)
	}
	return nil
}
