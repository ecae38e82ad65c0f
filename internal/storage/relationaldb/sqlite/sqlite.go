// Package sqlite opens a relationaldb.Store on an embedded SQLite database
// through modernc.org/sqlite.
package sqlite

import (
	"context"

	_ "modernc.org/sqlite"

	"github.com/LeJamon/xrpl-ingest/internal/storage/relationaldb"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rows (
		tbl TEXT NOT NULL,
		rowkey TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (tbl, rowkey)
	) WITHOUT ROWID`,
}

// Dialect is the SQLite dialect.
var Dialect = relationaldb.Dialect{
	Name:        "sqlite",
	Schema:      schema,
	Placeholder: relationaldb.Positional,
}

// Open opens or creates the database file named in config.Database.
func Open(ctx context.Context, config *relationaldb.Config) (*relationaldb.Store, error) {
	config = config.Clone()
	config.Driver = "sqlite"
	return relationaldb.Open(ctx, config, Dialect)
}
