package rippled

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/LeJamon/xrpl-ingest/internal/ingest"
)

// envelope is the part of every rippled message needed to route it.
type envelope struct {
	ID     *uint64         `json:"id,omitempty"`
	Type   string          `json:"type"`
	Status string          `json:"status,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`

	Error        string `json:"error,omitempty"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RPCError is an error response from rippled.
type RPCError struct {
	Command string
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rippled %s: %s", e.Command, e.Code)
	}
	return fmt.Sprintf("rippled %s: %s: %s", e.Command, e.Code, e.Message)
}

// Is reports lgrNotFound as ingest.ErrNotFound.
func (e *RPCError) Is(target error) bool {
	return target == ingest.ErrNotFound && e.Code == "lgrNotFound"
}

// index accepts a ledger index sent either as a number or a string.
type index uint32

func (i *index) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*i = 0
		return nil
	}
	n, err := strconv.ParseUint(string(data), 10, 32)
	if err != nil {
		return fmt.Errorf("ledger index %q: %w", data, err)
	}
	*i = index(n)
	return nil
}

type ledgerResult struct {
	Ledger struct {
		Closed       bool           `json:"closed"`
		LedgerData   string         `json:"ledger_data"`
		Transactions []binaryTxJSON `json:"transactions"`
	} `json:"ledger"`
	LedgerHash  string `json:"ledger_hash"`
	LedgerIndex index  `json:"ledger_index"`
	Validated   bool   `json:"validated"`
}

type binaryTxJSON struct {
	TxBlob string `json:"tx_blob"`
	Meta   string `json:"meta"`
}

// ledgerClosed is a message of the ledger stream.
type ledgerClosed struct {
	Type             string `json:"type"`
	LedgerIndex      index  `json:"ledger_index"`
	LedgerHash       string `json:"ledger_hash"`
	LedgerTime       uint32 `json:"ledger_time"`
	TxnCount         int    `json:"txn_count"`
	ValidatedLedgers string `json:"validated_ledgers"`
}
