package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// ErrFetchExhausted is returned once every attempt for a ledger has failed.
var ErrFetchExhausted = errors.New("ledger fetch attempts exhausted")

const (
	DefaultFetchTimeout = 8 * time.Second
	DefaultRetryDelay   = 250 * time.Millisecond
	DefaultMaxAttempts  = 10
)

// FetcherConfig configures a Fetcher. Zero values take the defaults.
type FetcherConfig struct {
	Timeout     time.Duration
	RetryDelay  time.Duration
	MaxAttempts int

	VerifyLedgerHash bool

	Logger  *zap.Logger
	Metrics *Metrics
}

// Fetcher reads ledgers from a LedgerSource, validates them and decodes
// their transactions. Every call is independent, so a Fetcher can be shared.
type Fetcher struct {
	source    LedgerSource
	validator *Validator

	timeout     time.Duration
	retryDelay  time.Duration
	maxAttempts int

	logger  *zap.Logger
	metrics *Metrics
}

// NewFetcher returns a Fetcher over source.
func NewFetcher(source LedgerSource, cfg FetcherConfig) *Fetcher {
	f := &Fetcher{
		source:      source,
		validator:   &Validator{VerifyLedgerHash: cfg.VerifyLedgerHash},
		timeout:     cfg.Timeout,
		retryDelay:  cfg.RetryDelay,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
	if f.timeout <= 0 {
		f.timeout = DefaultFetchTimeout
	}
	if f.retryDelay <= 0 {
		f.retryDelay = DefaultRetryDelay
	}
	if f.maxAttempts <= 0 {
		f.maxAttempts = DefaultMaxAttempts
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// GetLedger fetches, validates and decodes one ledger. Transport errors and
// validation failures are retried with a fixed delay. After the last attempt
// the error wraps ErrFetchExhausted and the last failure.
func (f *Fetcher) GetLedger(ctx context.Context, spec ledger.Specifier) (*ledger.Ledger, error) {
	var (
		result  *ledger.Ledger
		attempt int
	)

	op := func() error {
		attempt++
		l, err := f.attempt(ctx, spec)
		if err != nil {
			return err
		}
		result = l
		return nil
	}

	notify := func(err error, next time.Duration) {
		f.metrics.retry()
		f.logger.Debug("ledger fetch failed, retrying",
			zap.Stringer("ledger", spec),
			zap.Int("attempt", attempt),
			zap.Duration("delay", next),
			zap.Error(err))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.retryDelay), uint64(f.maxAttempts-1)),
		ctx)

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		f.metrics.fetchFailed()
		f.logger.Error("ledger fetch failed",
			zap.Stringer("ledger", spec),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return nil, fmt.Errorf("%w: ledger %s after %d attempts: %w", ErrFetchExhausted, spec, attempt, err)
	}
	return result, nil
}

func (f *Fetcher) attempt(ctx context.Context, spec ledger.Specifier) (l *ledger.Ledger, err error) {
	start := time.Now()
	defer func() { f.metrics.observeFetch(start, err) }()

	actx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	raw, err := f.source.Ledger(actx, spec)
	if err != nil {
		return nil, err
	}
	if err := f.validator.Validate(raw); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			f.metrics.rejected(verr.Reason)
		}
		return nil, err
	}
	return ledger.Decode(raw), nil
}
