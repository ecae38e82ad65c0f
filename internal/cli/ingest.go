package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeJamon/xrpl-ingest/internal/ingest"
)

var (
	rangeStart uint32
	rangeStop  uint32
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Import ledgers as they are validated",
	Long: `Live subscribes to the ledger stream of the configured servers and imports
every newly validated ledger. Ledgers skipped between two closes are
backfilled in the background. With ingest.live_start_index set, everything
from that ledger up to the first live one is imported as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *ingest.Pipeline) error {
			return p.Run(ctx)
		})
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Import a range of ledgers without looking at what is stored",
	Long: `Backfill imports every ledger from --start to --stop, newest first, checking
each one against the parent hash of the ledger above it. Without --stop the
range ends at the ledger before the latest validated one.

Example:
    xrpl-ingest backfill --start 32570 --stop 40000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *ingest.Pipeline) error {
			return p.Backfill(ctx, rangeStart, rangeStop)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Find and fill gaps in stored history",
	Long: `History scans the stored ledgers from --start to --stop and backfills every
missing ledger and every ledger whose parent hash does not match. Without
--start the scan begins at the genesis ledger; without --stop it ends at the
ledger before the latest validated one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *ingest.Pipeline) error {
			return p.History(ctx, rangeStart, rangeStop)
		})
	},
}

func init() {
	rootCmd.AddCommand(liveCmd, backfillCmd, historyCmd)

	for _, cmd := range []*cobra.Command{backfillCmd, historyCmd} {
		cmd.Flags().Uint32Var(&rangeStart, "start", 0, "first ledger index of the range")
		cmd.Flags().Uint32Var(&rangeStop, "stop", 0, "last ledger index of the range (default: latest validated - 1)")
	}
	backfillCmd.MarkFlagRequired("start")
}

// withPipeline runs fn with a pipeline over the configured store until it
// returns or the process is interrupted.
func withPipeline(fn func(context.Context, *ingest.Pipeline) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := a.openPipeline(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, p)
	if ctx.Err() != nil {
		a.logger.Info("interrupted, shutting down")
		return nil
	}
	if err != nil {
		a.logger.Error("import failed", zap.Error(err))
	}
	return err
}
