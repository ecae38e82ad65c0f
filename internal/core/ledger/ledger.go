package ledger

import (
	"fmt"
	"time"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger/header"
)

// RawLedger is a ledger as delivered by the remote source, before validation.
type RawLedger struct {
	Index      uint32
	Hash       Hash256
	ParentHash Hash256
	TxHash     Hash256
	CloseTime  uint32
	Closed     bool

	// Header is set when the source delivered the serialized header.
	Header *header.LedgerHeader

	Transactions []RawTransaction
}

// RawTransaction is one serialized transaction with its serialized metadata.
type RawTransaction struct {
	Blob []byte
	Meta []byte
}

// Ledger is a validated ledger with decoded transactions.
type Ledger struct {
	Index       uint32
	Hash        Hash256
	ParentHash  Hash256
	TxHash      Hash256
	AccountHash Hash256
	TotalDrops  uint64

	CloseTime           time.Time
	ParentCloseTime     time.Time
	CloseTimeResolution uint8
	CloseFlags          uint8
	Closed              bool

	// Ordered by transaction index.
	Transactions []*Transaction
}

func (l *Ledger) String() string {
	return fmt.Sprintf("ledger %d (%s)", l.Index, l.Hash)
}

// Transaction is a decoded transaction owned by exactly one ledger.
type Transaction struct {
	Hash Hash256

	LedgerIndex  uint32
	LedgerHash   Hash256
	ExecutedTime time.Time

	// Index is the execution position within the ledger.
	Index   uint32
	Type    string
	Result  string
	Account string

	Fields        Fields
	Meta          Fields
	AffectedNodes []AffectedNode

	Blob     []byte
	MetaBlob []byte

	// DecodeErr is set when the raw transaction could not be fully decoded.
	// Such a transaction has no AffectedNodes.
	DecodeErr error
}

// Successful reports a tesSUCCESS result.
func (tx *Transaction) Successful() bool {
	return tx.Result == "tesSUCCESS"
}

// Claimed reports a result that was applied to the ledger, including tec codes.
func (tx *Transaction) Claimed() bool {
	return tx.Successful() || (len(tx.Result) >= 3 && tx.Result[:3] == "tec")
}

// Specifier selects a ledger on the remote source.
type Specifier struct {
	Index     uint32
	Hash      Hash256
	Validated bool

	// Server routes the request to one configured server, when set.
	Server string
}

// ByIndex selects a ledger by sequence.
func ByIndex(index uint32) Specifier {
	return Specifier{Index: index}
}

// ByHash selects a ledger by hash.
func ByHash(hash Hash256) Specifier {
	return Specifier{Hash: hash}
}

// LatestValidated selects the most recent validated ledger.
func LatestValidated() Specifier {
	return Specifier{Validated: true}
}

func (s Specifier) String() string {
	switch {
	case !s.Hash.IsZero():
		return s.Hash.String()
	case s.Index != 0:
		return fmt.Sprintf("%d", s.Index)
	default:
		return "validated"
	}
}
