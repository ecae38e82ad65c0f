package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/LeJamon/xrpl-ingest/internal/config"
	"github.com/LeJamon/xrpl-ingest/internal/ingest"
	"github.com/LeJamon/xrpl-ingest/internal/logging"
	"github.com/LeJamon/xrpl-ingest/internal/rippled"
	"github.com/LeJamon/xrpl-ingest/internal/storage/relationaldb"
	"github.com/LeJamon/xrpl-ingest/internal/storage/relationaldb/postgres"
	"github.com/LeJamon/xrpl-ingest/internal/storage/relationaldb/sqlite"
	"github.com/LeJamon/xrpl-ingest/internal/storage/rows"
	"github.com/LeJamon/xrpl-ingest/internal/storage/rowstore"
)

const (
	metricsNamespace    = "xrpl_ingest"
	metricsReadTimeout  = 5 * time.Second
	shutdownGracePeriod = 10 * time.Second
)

// app holds what every command needs: configuration, logger, metrics and
// the rippled client. The pipeline and its store are opened on demand.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *ingest.Metrics
	client   *rippled.Client
	admin    *http.Server
	pipeline *ingest.Pipeline
}

func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if debug {
		cfg.Log.Level = "debug"
	} else if quiet {
		cfg.Log.Level = "warn"
	}
	if verbose {
		cfg.Log.Format = "console"
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := rippled.New(rippled.Config{
		Servers:        cfg.Source.Servers,
		RequestTimeout: cfg.Source.RequestTimeout,
		PingInterval:   cfg.Source.PingInterval,
		ReconnectDelay: cfg.Source.ReconnectDelay,
		Logger:         logger.Named("rippled"),
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  ingest.NewMetrics(metricsNamespace, registry),
		client:   client,
	}, nil
}

func (a *app) fetcherConfig() ingest.FetcherConfig {
	return ingest.FetcherConfig{
		Timeout:          a.cfg.Ingest.FetchTimeout,
		RetryDelay:       a.cfg.Ingest.RetryDelay,
		MaxAttempts:      a.cfg.Ingest.MaxAttempts,
		VerifyLedgerHash: a.cfg.Ingest.VerifyLedgerHash,
		Logger:           a.logger.Named("fetcher"),
		Metrics:          a.metrics,
	}
}

// openPipeline opens the configured store and starts the metrics endpoint.
func (a *app) openPipeline(ctx context.Context) (*ingest.Pipeline, error) {
	store, err := openStore(ctx, a.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Storage.Backend, err)
	}

	p, err := ingest.New(a.client, store, ingest.PipelineConfig{
		Fetcher:         a.fetcherConfig(),
		Genesis:         a.cfg.Ingest.GenesisLedger,
		QueueLength:     a.cfg.Ingest.QueueLength,
		GapChunkSize:    a.cfg.Ingest.GapChunkSize,
		MaxGapSize:      a.cfg.Ingest.MaxGapSize,
		MaxRestarts:     a.cfg.Ingest.MaxRestarts,
		LiveStartIndex:  a.cfg.Ingest.LiveStartIndex,
		RecentCacheSize: a.cfg.Ingest.RecentCacheSize,
		Logger:          a.logger.Named("ingest"),
		Metrics:         a.metrics,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	a.pipeline = p

	if a.cfg.Metrics.Enabled {
		if err := a.serveMetrics(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func openStore(ctx context.Context, s config.StorageConfig) (rows.Store, error) {
	switch s.Backend {
	case "pebble", "leveldb":
		store, err := rowstore.Open(s.Backend, s.Path, s.Compression)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		store, err := sqlite.Open(ctx, relationaldb.SQLiteConfig(s.Path))
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		pg := s.Postgres.Clone()
		pg.Driver = "postgres"
		store, err := postgres.Open(ctx, pg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}

func (a *app) serveMetrics() error {
	listener, err := net.Listen("tcp", a.cfg.Metrics.Address)
	if err != nil {
		return fmt.Errorf("cannot listen on metrics address: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.admin = &http.Server{Handler: mux, ReadTimeout: metricsReadTimeout}

	go func() {
		if err := a.admin.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("address", listener.Addr().String()))
	return nil
}

func (a *app) Close() {
	if a.admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		if err := a.admin.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("error during metrics server shutdown", zap.Error(err))
		}
		cancel()
	}
	if a.pipeline != nil {
		if err := a.pipeline.Close(); err != nil {
			a.logger.Error("error closing store", zap.Error(err))
		}
	}
	a.client.Close()
	a.logger.Sync()
}
