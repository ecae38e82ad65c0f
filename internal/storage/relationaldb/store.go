// Package relationaldb stores rows in a SQL database, one upserted record
// per table and row key, with the row itself as a JSON document.
package relationaldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/LeJamon/xrpl-ingest/internal/storage/rows"
)

// Dialect holds what differs between SQL engines.
type Dialect struct {
	Name string
	// Schema creates the rows table. It must be idempotent.
	Schema []string
	// Placeholder returns the bind marker for the n-th argument, from 1.
	Placeholder func(n int) string
	// Classify maps driver errors; nil falls back to WrapError.
	Classify Classifier
}

// Store implements rows.Store on a *sql.DB.
type Store struct {
	mu      sync.RWMutex
	db      *sql.DB
	config  *Config
	dialect Dialect

	upsertSQL string
	getSQL    string
	scanSQL   string
	lastSQL   string
}

// Open connects with the given driver, verifies the connection and
// creates the schema.
func Open(ctx context.Context, config *Config, dialect Dialect) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, NewConfigurationError("open", "invalid configuration", err)
	}
	connStr, err := config.BuildConnectionString()
	if err != nil {
		return nil, NewConfigurationError("open", "failed to build connection string", err)
	}

	sqlDB, err := sql.Open(config.Driver, connStr)
	if err != nil {
		return nil, NewConnectionError("open", "failed to open database connection", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, config.DefaultTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, NewConnectionError("open", "failed to ping database", err)
	}

	for _, query := range dialect.Schema {
		if _, err := sqlDB.ExecContext(ctx, query); err != nil {
			sqlDB.Close()
			return nil, NewSchemaError("open", "failed to initialize schema", err)
		}
	}

	p := dialect.Placeholder
	return &Store{
		db:      sqlDB,
		config:  config,
		dialect: dialect,
		upsertSQL: fmt.Sprintf(`INSERT INTO rows (tbl, rowkey, data) VALUES (%s, %s, %s)
			ON CONFLICT (tbl, rowkey) DO UPDATE SET data = excluded.data`, p(1), p(2), p(3)),
		getSQL: fmt.Sprintf(`SELECT data FROM rows WHERE tbl = %s AND rowkey = %s`, p(1), p(2)),
		scanSQL: fmt.Sprintf(`SELECT rowkey, data FROM rows WHERE tbl = %s AND rowkey >= %s AND rowkey < %s
			ORDER BY rowkey`, p(1), p(2), p(3)),
		lastSQL: fmt.Sprintf(`SELECT rowkey, data FROM rows WHERE tbl = %s AND rowkey >= %s AND rowkey < %s
			ORDER BY rowkey DESC LIMIT 1`, p(1), p(2), p(3)),
	}, nil
}

// Numbered returns $1-style placeholders.
func Numbered(n int) string {
	return "$" + strconv.Itoa(n)
}

// Positional returns ?-style placeholders.
func Positional(int) string {
	return "?"
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrDatabaseClosed
	}
	return s.db, nil
}

func (s *Store) wrap(err error, operation string) error {
	if err == nil {
		return nil
	}
	if s.dialect.Classify != nil {
		if dbErr := s.dialect.Classify(err, operation); dbErr != nil {
			return dbErr
		}
	}
	return WrapError(err, operation)
}

// retry runs op until it succeeds, fails with a non-retryable error, or
// MaxRetries is reached.
func (s *Store) retry(ctx context.Context, operation string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.config.RetryDelay
	policy.MaxInterval = s.config.RetryMaxDelay

	return backoff.Retry(func() error {
		err := s.wrap(op(), operation)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.config.MaxRetries)), ctx))
}

func encodeRow(row rows.Row) (string, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encode row: %w", err)
	}
	return string(data), nil
}

func decodeRow(data []byte) (rows.Row, error) {
	var row rows.Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return row, nil
}

func (s *Store) PutRows(ctx context.Context, table string, batch map[string]rows.Row) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	encoded := make(map[string]string, len(batch))
	for key, row := range batch {
		data, err := encodeRow(row)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", table, key, err)
		}
		encoded[key] = data
	}

	return s.retry(ctx, "put_rows", func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, s.upsertSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for key, data := range encoded {
			if _, err := stmt.ExecContext(ctx, table, key, data); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *Store) PutRow(ctx context.Context, table, key string, row rows.Row) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	data, err := encodeRow(row)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", table, key, err)
	}
	return s.retry(ctx, "put_row", func() error {
		_, err := db.ExecContext(ctx, s.upsertSQL, table, key, data)
		return err
	})
}

func (s *Store) GetRow(ctx context.Context, table, key string) (rows.Row, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	var data []byte
	err = db.QueryRowContext(ctx, s.getSQL, table, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rows.ErrRowNotFound
	}
	if err != nil {
		return nil, s.wrap(err, "get_row")
	}
	return decodeRow(data)
}

func (s *Store) Scan(ctx context.Context, table, from, to string, fn func(string, rows.Row) error) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	result, err := db.QueryContext(ctx, s.scanSQL, table, from, to)
	if err != nil {
		return s.wrap(err, "scan")
	}
	defer result.Close()

	for result.Next() {
		var (
			key  string
			data []byte
		)
		if err := result.Scan(&key, &data); err != nil {
			return s.wrap(err, "scan")
		}
		row, err := decodeRow(data)
		if err != nil {
			return err
		}
		if err := fn(key, row); err != nil {
			return err
		}
	}
	return s.wrap(result.Err(), "scan")
}

func (s *Store) Last(ctx context.Context, table, from, to string) (string, rows.Row, error) {
	db, err := s.handle()
	if err != nil {
		return "", nil, err
	}
	var (
		key  string
		data []byte
	)
	err = db.QueryRowContext(ctx, s.lastSQL, table, from, to).Scan(&key, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, rows.ErrRowNotFound
	}
	if err != nil {
		return "", nil, s.wrap(err, "last")
	}
	row, err := decodeRow(data)
	return key, row, err
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return NewConnectionError("close", "failed to close database connection", err)
	}
	return nil
}
