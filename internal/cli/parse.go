package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/LeJamon/xrpl-ingest/internal/ingest"
	"github.com/LeJamon/xrpl-ingest/internal/parser"
)

var (
	parseIndex uint32
	parseHash  string
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Print the events of one ledger as JSON",
	Long: `Parse fetches one ledger, validates it and prints the events the importer
would store for it. Nothing is written. Without --index or --hash the latest
validated ledger is used.

Example:
    xrpl-ingest parse --index 40000000`,
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Uint32Var(&parseIndex, "index", 0, "ledger index")
	parseCmd.Flags().StringVar(&parseHash, "hash", "", "ledger hash")
	parseCmd.MarkFlagsMutuallyExclusive("index", "hash")
}

type parseOutput struct {
	LedgerIndex uint32         `json:"ledger_index"`
	LedgerHash  ledger.Hash256 `json:"ledger_hash"`
	ParentHash  ledger.Hash256 `json:"parent_hash"`
	CloseTime   time.Time      `json:"close_time"`
	TxCount     int            `json:"tx_count"`
	Events      *parser.Parsed `json:"events"`
	Errors      []string       `json:"errors,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	spec := ledger.Specifier{Index: parseIndex, Validated: parseIndex == 0 && parseHash == ""}
	if parseHash != "" {
		hash, err := ledger.ParseHash256(parseHash)
		if err != nil {
			return err
		}
		spec = ledger.ByHash(hash)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	l, err := ingest.NewFetcher(a.client, a.fetcherConfig()).GetLedger(ctx, spec)
	if err != nil {
		return err
	}

	out := parseOutput{
		LedgerIndex: l.Index,
		LedgerHash:  l.Hash,
		ParentHash:  l.ParentHash,
		CloseTime:   l.CloseTime,
		TxCount:     len(l.Transactions),
		Events:      parser.ParseLedger(l),
	}
	for _, err := range out.Events.Errors {
		out.Errors = append(out.Errors, err.Error())
	}
	out.Events.Errors = nil

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode ledger %d: %w", l.Index, err)
	}
	return nil
}
