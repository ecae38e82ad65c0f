package rows

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ledgerTables are written after everything else, so a stored ledger row
// implies its transactions and events are stored too.
var ledgerTables = map[string]bool{
	TableLedgers:        true,
	TableLedgersByIndex: true,
	TableLedgersByTime:  true,
}

// Save writes t to sink, one goroutine per table.
func Save(ctx context.Context, sink Sink, t Tables) error {
	if err := putTables(ctx, sink, t, func(table string) bool { return !ledgerTables[table] }); err != nil {
		return err
	}
	return putTables(ctx, sink, t, func(table string) bool { return ledgerTables[table] })
}

func putTables(ctx context.Context, sink Sink, t Tables, include func(string) bool) error {
	g, ctx := errgroup.WithContext(ctx)
	for table, rows := range t {
		if !include(table) || len(rows) == 0 {
			continue
		}
		g.Go(func() error {
			if err := sink.PutRows(ctx, table, rows); err != nil {
				return fmt.Errorf("save %s: %w", table, err)
			}
			return nil
		})
	}
	return g.Wait()
}
