package shamap

import (
	"bytes"
	"sort"

	crypto "github.com/LeJamon/xrpl-ingest/internal/crypto/common"
	"github.com/LeJamon/xrpl-ingest/internal/protocol"
)

const (
	branchFactor = 16
	maxDepth     = 64
)

// TxItem is one transaction-with-metadata leaf of a transaction tree.
type TxItem struct {
	ID   [32]byte
	Blob []byte
	Meta []byte
}

// TxTree accumulates the leaves of a ledger's transaction set and computes
// the root hash the ledger header declares as transaction_hash.
type TxTree struct {
	items []TxItem
}

// NewTxTree returns an empty transaction tree.
func NewTxTree() *TxTree {
	return &TxTree{}
}

// Add inserts a transaction leaf. Adding the same ID twice keeps the last one.
func (t *TxTree) Add(item TxItem) {
	for i := range t.items {
		if t.items[i].ID == item.ID {
			t.items[i] = item
			return
		}
	}
	t.items = append(t.items, item)
}

// Len returns the number of leaves.
func (t *TxTree) Len() int {
	return len(t.items)
}

// Hash returns the root hash. An empty tree hashes to zero.
func (t *TxTree) Hash() [32]byte {
	if len(t.items) == 0 {
		return [32]byte{}
	}

	items := make([]TxItem, len(t.items))
	copy(items, t.items)
	sort.Slice(items, func(i, j int) bool {
		return bytes.Compare(items[i].ID[:], items[j].ID[:]) < 0
	})

	return innerHash(items, 0)
}

// LeafHash hashes a transaction+metadata leaf the way rippled stores it:
// prefix, VL(tx), VL(meta), key.
func LeafHash(item TxItem) [32]byte {
	return crypto.Sha512Half(
		protocol.HashPrefixTxNode[:],
		EncodeVL(item.Blob),
		EncodeVL(item.Meta),
		item.ID[:],
	)
}

// innerHash hashes the inner node at depth holding the sorted items.
// The root is always an inner node; below it a single item collapses to its leaf.
func innerHash(items []TxItem, depth int) [32]byte {
	var children [branchFactor][]TxItem
	for _, it := range items {
		b := nibble(it.ID, depth)
		children[b] = append(children[b], it)
	}

	parts := make([][]byte, 0, branchFactor+1)
	parts = append(parts, protocol.HashPrefixInnerNode[:])
	for b := 0; b < branchFactor; b++ {
		var h [32]byte
		switch n := len(children[b]); {
		case n == 1:
			h = LeafHash(children[b][0])
		case n > 1 && depth+1 < maxDepth:
			h = innerHash(children[b], depth+1)
		}
		parts = append(parts, h[:])
	}

	return crypto.Sha512Half(parts...)
}

func nibble(key [32]byte, depth int) int {
	b := key[depth/2]
	if depth%2 == 0 {
		return int(b >> 4)
	}
	return int(b & 0x0F)
}
