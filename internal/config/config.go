package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/LeJamon/xrpl-ingest/internal/storage/relationaldb"
)

// DefaultConfigName is the configuration file looked up when none is given.
const DefaultConfigName = "xrpl-ingest.toml"

// Config represents the complete importer configuration
type Config struct {
	Source  SourceConfig  `toml:"source" mapstructure:"source"`
	Ingest  IngestConfig  `toml:"ingest" mapstructure:"ingest"`
	Storage StorageConfig `toml:"storage" mapstructure:"storage"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`

	configPath string
}

// SourceConfig lists the rippled servers ledgers are read from
type SourceConfig struct {
	Servers        []string      `toml:"servers" mapstructure:"servers"`
	RequestTimeout time.Duration `toml:"request_timeout" mapstructure:"request_timeout"`
	PingInterval   time.Duration `toml:"ping_interval" mapstructure:"ping_interval"`
	ReconnectDelay time.Duration `toml:"reconnect_delay" mapstructure:"reconnect_delay"`
}

// IngestConfig tunes fetching, backfilling and gap detection
type IngestConfig struct {
	GenesisLedger    uint32        `toml:"genesis_ledger" mapstructure:"genesis_ledger"`
	QueueLength      int           `toml:"queue_length" mapstructure:"queue_length"`
	FetchTimeout     time.Duration `toml:"fetch_timeout" mapstructure:"fetch_timeout"`
	RetryDelay       time.Duration `toml:"retry_delay" mapstructure:"retry_delay"`
	MaxAttempts      int           `toml:"max_attempts" mapstructure:"max_attempts"`
	GapChunkSize     int           `toml:"gap_chunk_size" mapstructure:"gap_chunk_size"`
	MaxGapSize       int           `toml:"max_gap_size" mapstructure:"max_gap_size"`
	MaxRestarts      int           `toml:"max_restarts" mapstructure:"max_restarts"`
	VerifyLedgerHash bool          `toml:"verify_ledger_hash" mapstructure:"verify_ledger_hash"`
	RecentCacheSize  int           `toml:"recent_cache_size" mapstructure:"recent_cache_size"`

	// Live import backfills from this ledger on start; 0 disables it.
	LiveStartIndex uint32 `toml:"live_start_index" mapstructure:"live_start_index"`
}

// StorageConfig selects the row store backend
type StorageConfig struct {
	// Backend is pebble, leveldb, postgres or sqlite
	Backend     string `toml:"backend" mapstructure:"backend"`
	Path        string `toml:"path" mapstructure:"path"`
	Compression string `toml:"compression" mapstructure:"compression"`

	Postgres relationaldb.Config `toml:"postgres" mapstructure:"postgres"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Address string `toml:"address" mapstructure:"address"`
}

// IsRelational reports whether the backend is a SQL database
func (s StorageConfig) IsRelational() bool {
	return s.Backend == "postgres" || s.Backend == "sqlite"
}

// GetConfigPath returns the path of the loaded configuration file, if any
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// DefaultConfigPath returns the first existing default configuration file:
// the working directory, then $HOME/.config/xrpl-ingest.
func DefaultConfigPath() string {
	candidates := []string{DefaultConfigName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "xrpl-ingest", DefaultConfigName))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
