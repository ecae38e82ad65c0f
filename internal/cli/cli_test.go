package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/xrpl-ingest/internal/config"
	"github.com/LeJamon/xrpl-ingest/internal/storage/rows"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "xrpl-ingest version "+rootCmd.Version)
}

func TestLoadConfigFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultConfigName)
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0644))

	configFile, debug, verbose, quiet = path, true, true, false
	t.Cleanup(func() { configFile, debug, verbose, quiet = "", false, false, false })

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)

	debug, quiet = false, true
	cfg, err = loadConfig()
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, s := range []config.StorageConfig{
		{Backend: "pebble", Path: filepath.Join(dir, "pebble"), Compression: "lz4"},
		{Backend: "leveldb", Path: filepath.Join(dir, "leveldb"), Compression: "none"},
		{Backend: "sqlite", Path: filepath.Join(dir, "rows.db")},
	} {
		t.Run(s.Backend, func(t *testing.T) {
			store, err := openStore(ctx, s)
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.PutRow(ctx, rows.TableControl, "probe", rows.Row{"ok": "yes"}))
			row, err := store.GetRow(ctx, rows.TableControl, "probe")
			require.NoError(t, err)
			require.Equal(t, "yes", row.String("ok"))
		})
	}

	_, err := openStore(ctx, config.StorageConfig{Backend: "hbase"})
	require.Error(t, err)
}
