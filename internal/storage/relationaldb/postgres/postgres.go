// Package postgres opens a relationaldb.Store on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"errors"

	"github.com/lib/pq"

	"github.com/LeJamon/xrpl-ingest/internal/storage/relationaldb"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rows (
		tbl TEXT NOT NULL,
		rowkey TEXT COLLATE "C" NOT NULL,
		data JSONB NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		PRIMARY KEY (tbl, rowkey)
	)`,
}

// Dialect is the PostgreSQL dialect.
var Dialect = relationaldb.Dialect{
	Name:        "postgres",
	Schema:      schema,
	Placeholder: relationaldb.Numbered,
	Classify:    classify,
}

// Open connects to PostgreSQL and prepares the schema.
func Open(ctx context.Context, config *relationaldb.Config) (*relationaldb.Store, error) {
	config = config.Clone()
	config.Driver = "postgres"
	return relationaldb.Open(ctx, config, Dialect)
}

// classify maps PostgreSQL error classes onto database error types.
func classify(err error, operation string) *relationaldb.DatabaseError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	var errorType relationaldb.ErrorType
	retryable := false
	switch pqErr.Code.Class() {
	case "08": // connection exception
		errorType = relationaldb.ErrorTypeConnection
		retryable = true
	case "40": // transaction rollback, including deadlocks and serialization failures
		errorType = relationaldb.ErrorTypeTransaction
		retryable = true
	case "23": // integrity constraint violation
		errorType = relationaldb.ErrorTypeConstraint
	case "42": // syntax error or access rule violation
		errorType = relationaldb.ErrorTypeQuery
	case "53", "57": // insufficient resources, operator intervention
		errorType = relationaldb.ErrorTypeConnection
		retryable = true
	default:
		errorType = relationaldb.ErrorTypeUnknown
	}

	return &relationaldb.DatabaseError{
		Type:      errorType,
		Operation: operation,
		Message:   pqErr.Message,
		Cause:     err,
		Code:      string(pqErr.Code),
		Retryable: retryable,
	}
}
