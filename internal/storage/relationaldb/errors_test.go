package relationaldb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	cases := []struct {
		err       error
		want      ErrorType
		retryable bool
	}{
		{errors.New("dial tcp: connection refused"), ErrorTypeConnection, true},
		{errors.New("database is locked"), ErrorTypeTransaction, true},
		{errors.New("UNIQUE constraint failed: rows.tbl"), ErrorTypeConstraint, false},
		{errors.New("near \"SELEC\": syntax error"), ErrorTypeQuery, false},
		{errors.New("something odd"), ErrorTypeUnknown, false},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			err := WrapError(tc.err, "put_rows")
			var dbErr *DatabaseError
			require.ErrorAs(t, err, &dbErr)
			require.Equal(t, tc.want, dbErr.Type)
			require.Equal(t, tc.retryable, IsRetryable(err))
			require.ErrorIs(t, err, tc.err)
		})
	}

	require.NoError(t, WrapError(nil, "noop"))
}

func TestWrapErrorKeepsType(t *testing.T) {
	inner := NewConnectionError("open", "failed to ping database", errors.New("eof"))
	err := WrapError(fmt.Errorf("outer: %w", inner), "reopen")

	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	require.Equal(t, ErrorTypeConnection, dbErr.Type)
	require.Equal(t, "reopen", dbErr.Operation)
	require.True(t, dbErr.IsRetryable())
}

func TestConfigValidate(t *testing.T) {
	cfg := SQLiteConfig("/tmp/x.db")
	require.NoError(t, cfg.Validate())

	dsn, err := cfg.BuildConnectionString()
	require.NoError(t, err)
	require.Contains(t, dsn, "file:/tmp/x.db?")
	require.Contains(t, dsn, "journal_mode%28WAL%29")

	bad := NewConfig()
	bad.Driver = "oracle"
	require.ErrorIs(t, bad.Validate(), ErrInvalidDriver)

	bad = NewConfig()
	bad.MaxIdleConns = 50
	require.ErrorIs(t, bad.Validate(), ErrMaxIdleExceedsMaxOpen)
}
