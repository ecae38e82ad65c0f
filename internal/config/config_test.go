package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[source]
servers = ["wss://s1.example.com", "ws://127.0.0.1:6006"]
ping_interval = "10s"

[ingest]
queue_length = 50
retry_delay = "1s"
live_start_index = 90000000

[storage]
backend = "leveldb"
path = "/var/lib/xrpl-ingest/rows"
compression = "none"

[log]
level = "debug"
format = "console"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://s1.example.com", "ws://127.0.0.1:6006"}, config.Source.Servers)
	assert.Equal(t, 10*time.Second, config.Source.PingInterval)
	assert.Equal(t, 8*time.Second, config.Source.RequestTimeout)

	assert.Equal(t, 50, config.Ingest.QueueLength)
	assert.Equal(t, time.Second, config.Ingest.RetryDelay)
	assert.Equal(t, uint32(90000000), config.Ingest.LiveStartIndex)
	assert.Equal(t, uint32(32570), config.Ingest.GenesisLedger)
	assert.Equal(t, 10, config.Ingest.MaxAttempts)

	assert.Equal(t, "leveldb", config.Storage.Backend)
	assert.Equal(t, "none", config.Storage.Compression)
	assert.False(t, config.Storage.IsRelational())

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "console", config.Log.Format)
	assert.Equal(t, path, config.GetConfigPath())
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "pebble", config.Storage.Backend)
	assert.Equal(t, "lz4", config.Storage.Compression)
	assert.Equal(t, 20, config.Ingest.QueueLength)
	assert.Equal(t, 200, config.Ingest.GapChunkSize)
	assert.Equal(t, 250*time.Millisecond, config.Ingest.RetryDelay)
	assert.True(t, config.Ingest.VerifyLedgerHash)
	assert.Equal(t, 5432, config.Storage.Postgres.Port)
	assert.Equal(t, time.Hour, config.Storage.Postgres.ConnMaxLifetime)
	assert.False(t, config.Metrics.Enabled)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("XRPLINGEST_STORAGE_BACKEND", "sqlite")
	t.Setenv("XRPLINGEST_STORAGE_PATH", "/tmp/rows.db")
	t.Setenv("XRPLINGEST_INGEST_MAX_ATTEMPTS", "4")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", config.Storage.Backend)
	assert.Equal(t, "/tmp/rows.db", config.Storage.Path)
	assert.True(t, config.Storage.IsRelational())
	assert.Equal(t, 4, config.Ingest.MaxAttempts)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "http server",
			content: "[source]\nservers = [\"http://s1.example.com\"]\n",
			errMsg:  "must use ws:// or wss://",
		},
		{
			name:    "no servers",
			content: "[source]\nservers = []\n",
			errMsg:  "at least one server",
		},
		{
			name:    "zero queue",
			content: "[ingest]\nqueue_length = 0\n",
			errMsg:  "queue_length",
		},
		{
			name:    "unknown backend",
			content: "[storage]\nbackend = \"hbase\"\n",
			errMsg:  "unknown backend",
		},
		{
			name:    "unknown compression",
			content: "[storage]\ncompression = \"zstd\"\n",
			errMsg:  "unknown compression",
		},
		{
			name:    "postgres without database",
			content: "[storage]\nbackend = \"postgres\"\n[storage.postgres]\ndatabase = \"\"\n",
			errMsg:  "postgres",
		},
		{
			name:    "live start before genesis",
			content: "[ingest]\nlive_start_index = 100\n",
			errMsg:  "precedes genesis",
		},
		{
			name:    "bad log level",
			content: "[log]\nlevel = \"trace\"\n",
			errMsg:  "invalid level",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
