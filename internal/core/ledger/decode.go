package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger/header"
	crypto "github.com/LeJamon/xrpl-ingest/internal/crypto/common"
	"github.com/LeJamon/xrpl-ingest/internal/protocol"
	binarycodec "github.com/Peersyst/xrpl-go/binary-codec"
)

var ErrMissingMeta = errors.New("transaction has no metadata")

// TransactionID hashes a serialized transaction into its ID.
func TransactionID(blob []byte) Hash256 {
	return Hash256(crypto.Sha512Half(protocol.HashPrefixTransactionID[:], blob))
}

// Decode turns a validated raw ledger into its decoded form. A transaction
// that fails to decode stays in the ledger with its raw bytes and DecodeErr
// set; it never fails the ledger.
func Decode(raw *RawLedger) *Ledger {
	l := &Ledger{
		Index:      raw.Index,
		Hash:       raw.Hash,
		ParentHash: raw.ParentHash,
		TxHash:     raw.TxHash,
		CloseTime:  header.ToTime(raw.CloseTime),
		Closed:     raw.Closed,
	}
	if h := raw.Header; h != nil {
		l.AccountHash = Hash256(h.AccountHash)
		l.TotalDrops = h.Drops
		l.ParentCloseTime = h.ParentCloseTimeUTC()
		l.CloseTimeResolution = h.CloseTimeResolution
		l.CloseFlags = h.CloseFlags
	}

	l.Transactions = make([]*Transaction, 0, len(raw.Transactions))
	for i, rt := range raw.Transactions {
		tx, err := DecodeTransaction(rt)
		if err != nil {
			tx.DecodeErr = fmt.Errorf("ledger %d: transaction %d: %w", raw.Index, i, err)
		}
		l.Attach(tx)
	}

	// Transactions without metadata have no known index and sort last.
	sort.SliceStable(l.Transactions, func(i, j int) bool {
		a, b := l.Transactions[i], l.Transactions[j]
		if (a.Meta == nil) != (b.Meta == nil) {
			return b.Meta == nil
		}
		return a.Index < b.Index
	})
	return l
}

// DecodeTransaction decodes one serialized transaction and its metadata.
// The returned transaction is never nil: on error it carries the raw bytes,
// its hash and whatever decoded before the failure.
func DecodeTransaction(rt RawTransaction) (*Transaction, error) {
	tx := &Transaction{
		Hash:     TransactionID(rt.Blob),
		Blob:     rt.Blob,
		MetaBlob: rt.Meta,
	}
	if len(rt.Meta) == 0 {
		return tx, ErrMissingMeta
	}

	fields, err := binarycodec.Decode(hex.EncodeToString(rt.Blob))
	if err != nil {
		return tx, fmt.Errorf("decode tx blob: %w", err)
	}
	tx.setFields(fields)

	meta, err := binarycodec.Decode(hex.EncodeToString(rt.Meta))
	if err != nil {
		return tx, fmt.Errorf("decode metadata: %w", err)
	}
	return tx, tx.setMeta(meta)
}

// NewTransaction builds a transaction from already decoded fields, as found
// in JSON ledger responses. The hash is read from the "hash" field when present.
func NewTransaction(fields, meta map[string]any) (*Transaction, error) {
	if meta == nil {
		return nil, ErrMissingMeta
	}

	tx := &Transaction{}
	tx.setFields(fields)
	if err := tx.setMeta(meta); err != nil {
		return nil, err
	}

	if s := tx.Fields.String("hash"); s != "" {
		h, err := ParseHash256(s)
		if err != nil {
			return nil, err
		}
		tx.Hash = h
	}
	return tx, nil
}

func (tx *Transaction) setFields(fields map[string]any) {
	tx.Fields = Fields(fields)
	tx.Type = tx.Fields.String("TransactionType")
	tx.Account = tx.Fields.String("Account")
}

// setMeta keeps the metadata even when its affected nodes are malformed.
func (tx *Transaction) setMeta(meta map[string]any) error {
	tx.Meta = Fields(meta)
	tx.Result = tx.Meta.String("TransactionResult")
	tx.Index, _ = tx.Meta.Uint32("TransactionIndex")

	nodes, err := DecodeAffectedNodes(tx.Meta["AffectedNodes"])
	if err != nil {
		return err
	}
	tx.AffectedNodes = nodes
	return nil
}

// Attach adds a transaction to the ledger, setting its ledger context.
func (l *Ledger) Attach(tx *Transaction) {
	tx.LedgerIndex = l.Index
	tx.LedgerHash = l.Hash
	tx.ExecutedTime = l.CloseTime
	l.Transactions = append(l.Transactions, tx)
}
