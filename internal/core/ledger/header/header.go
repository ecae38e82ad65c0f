package header

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	crypto "github.com/LeJamon/xrpl-ingest/internal/crypto/common"
	"github.com/LeJamon/xrpl-ingest/internal/protocol"
)

// Ledger close flags
const sLCFNoConsensusTime uint8 = 0x01

// Size is the length of a serialized header without its trailing hash.
const Size = 4 + 8 + 32*3 + 4 + 4 + 1 + 1

var ErrShortHeader = errors.New("ledger header too short")

// LedgerHeader is the fixed part of a closed ledger that its hash commits to.
type LedgerHeader struct {
	LedgerIndex uint32
	Drops       uint64

	ParentHash  [32]byte
	TxHash      [32]byte
	AccountHash [32]byte

	// Seconds since the ripple epoch.
	ParentCloseTime uint32
	CloseTime       uint32

	// the resolution for this ledger close time (2-120 seconds)
	CloseTimeResolution uint8
	CloseFlags          uint8

	// Hash is only set when the serialized form carried it.
	Hash [32]byte
}

// GetCloseAgree returns true if there was consensus on the close time
func (h *LedgerHeader) GetCloseAgree() bool {
	return (h.CloseFlags & sLCFNoConsensusTime) == 0
}

// CloseTimeUTC converts the close time to wall-clock time.
func (h *LedgerHeader) CloseTimeUTC() time.Time {
	return ToTime(h.CloseTime)
}

// ParentCloseTimeUTC converts the parent close time to wall-clock time.
func (h *LedgerHeader) ParentCloseTimeUTC() time.Time {
	return ToTime(h.ParentCloseTime)
}

// Serialize writes the header fields in the order the ledger hash covers.
func (h *LedgerHeader) Serialize() []byte {
	buf := make([]byte, Size)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], h.LedgerIndex)
	off += 4
	binary.BigEndian.PutUint64(buf[off:], h.Drops)
	off += 8
	off += copy(buf[off:], h.ParentHash[:])
	off += copy(buf[off:], h.TxHash[:])
	off += copy(buf[off:], h.AccountHash[:])
	binary.BigEndian.PutUint32(buf[off:], h.ParentCloseTime)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], h.CloseTime)
	off += 4
	buf[off] = h.CloseTimeResolution
	buf[off+1] = h.CloseFlags
	return buf
}

// ComputeHash returns the ledger hash implied by the header fields.
func (h *LedgerHeader) ComputeHash() [32]byte {
	return crypto.Sha512Half(protocol.HashPrefixLedgerMaster[:], h.Serialize())
}

// DeserializeHeader decodes a ledger header. When hasHash is set the 32 bytes
// following the fields are read as the ledger hash.
func DeserializeHeader(data []byte, hasHash bool) (*LedgerHeader, error) {
	need := Size
	if hasHash {
		need += 32
	}
	if len(data) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortHeader, len(data), need)
	}

	h := &LedgerHeader{}
	off := 0
	h.LedgerIndex = binary.BigEndian.Uint32(data[off:])
	off += 4
	h.Drops = binary.BigEndian.Uint64(data[off:])
	off += 8
	off += copy(h.ParentHash[:], data[off:off+32])
	off += copy(h.TxHash[:], data[off:off+32])
	off += copy(h.AccountHash[:], data[off:off+32])
	h.ParentCloseTime = binary.BigEndian.Uint32(data[off:])
	off += 4
	h.CloseTime = binary.BigEndian.Uint32(data[off:])
	off += 4
	h.CloseTimeResolution = data[off]
	h.CloseFlags = data[off+1]
	off += 2

	if hasHash {
		copy(h.Hash[:], data[off:off+32])
	}
	return h, nil
}

// DeserializePrefixedHeader decodes a header preceded by its 4-byte hash prefix.
func DeserializePrefixedHeader(data []byte, hasHash bool) (*LedgerHeader, error) {
	if len(data) < 4 {
		return nil, ErrShortHeader
	}
	return DeserializeHeader(data[4:], hasHash)
}

// ToTime converts seconds since the ripple epoch to UTC.
func ToTime(rippleSeconds uint32) time.Time {
	return time.Unix(int64(rippleSeconds)+protocol.RippleEpochOffset, 0).UTC()
}
