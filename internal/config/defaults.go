package config

import "github.com/spf13/viper"

// setDefaults sets the default values for every section
func setDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("source.servers", []string{"wss://s2.ripple.com:443"})
	v.SetDefault("source.request_timeout", "8s")
	v.SetDefault("source.ping_interval", "30s")
	v.SetDefault("source.reconnect_delay", "1s")

	// Ingest defaults
	v.SetDefault("ingest.genesis_ledger", 32570)
	v.SetDefault("ingest.queue_length", 20)
	v.SetDefault("ingest.fetch_timeout", "8s")
	v.SetDefault("ingest.retry_delay", "250ms")
	v.SetDefault("ingest.max_attempts", 10)
	v.SetDefault("ingest.gap_chunk_size", 200)
	v.SetDefault("ingest.max_gap_size", 200)
	v.SetDefault("ingest.max_restarts", 3)
	v.SetDefault("ingest.verify_ledger_hash", true)
	v.SetDefault("ingest.recent_cache_size", 256)
	v.SetDefault("ingest.live_start_index", 0)

	// Storage defaults
	v.SetDefault("storage.backend", "pebble")
	v.SetDefault("storage.path", "data/rows")
	v.SetDefault("storage.compression", "lz4")

	v.SetDefault("storage.postgres.driver", "postgres")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.database", "xrpl")
	v.SetDefault("storage.postgres.username", "xrpl")
	v.SetDefault("storage.postgres.ssl_mode", "prefer")
	v.SetDefault("storage.postgres.max_open_conns", 25)
	v.SetDefault("storage.postgres.max_idle_conns", 5)
	v.SetDefault("storage.postgres.conn_max_lifetime", "1h")
	v.SetDefault("storage.postgres.conn_max_idle_time", "15m")
	v.SetDefault("storage.postgres.default_timeout", "30s")
	v.SetDefault("storage.postgres.max_retries", 3)
	v.SetDefault("storage.postgres.retry_delay", "100ms")
	v.SetDefault("storage.postgres.retry_max_delay", "5s")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9102")
}
