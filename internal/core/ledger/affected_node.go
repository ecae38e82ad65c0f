package ledger

import (
	"fmt"
)

// NodeKind tags which of the three metadata shapes an AffectedNode came from.
type NodeKind uint8

const (
	Created NodeKind = iota + 1
	Modified
	Deleted
)

func (k NodeKind) String() string {
	switch k {
	case Created:
		return "CreatedNode"
	case Modified:
		return "ModifiedNode"
	case Deleted:
		return "DeletedNode"
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// Ledger entry types the extractors look at.
const (
	EntryOffer       = "Offer"
	EntryAccountRoot = "AccountRoot"
	EntryRippleState = "RippleState"
	EntryEscrow      = "Escrow"
	EntryPayChannel  = "PayChannel"
)

// AffectedNode represents a ledger entry affected by a transaction
type AffectedNode struct {
	Kind NodeKind

	// Position in the metadata's AffectedNodes array.
	Index int

	// LedgerEntryType is the type of ledger entry
	EntryType string

	// LedgerIndex is the key of the entry
	LedgerIndex string

	PreviousTxnLgrSeq uint32
	PreviousTxnID     string

	// NewFields is only set for Created nodes.
	NewFields Fields
	// FinalFields is set for Modified and Deleted nodes.
	FinalFields Fields
	// PreviousFields holds the changed fields' old values, when any changed.
	PreviousFields Fields
}

// Fields returns NewFields for created entries and FinalFields otherwise.
func (n *AffectedNode) Fields() Fields {
	if n.Kind == Created {
		return n.NewFields
	}
	return n.FinalFields
}

// DecodeAffectedNodes converts the metadata's AffectedNodes array into the
// tagged form. Each element must be a single-key wrapper object.
func DecodeAffectedNodes(v any) ([]AffectedNode, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("AffectedNodes: unexpected type %T", v)
	}

	nodes := make([]AffectedNode, 0, len(list))
	for i, raw := range list {
		wrapper := AsFields(raw)
		if wrapper == nil {
			return nil, fmt.Errorf("AffectedNodes[%d]: unexpected type %T", i, raw)
		}

		var kind NodeKind
		var body Fields
		for _, k := range []NodeKind{Created, Modified, Deleted} {
			if b := wrapper.Object(k.String()); b != nil {
				kind, body = k, b
				break
			}
		}
		if body == nil {
			return nil, fmt.Errorf("AffectedNodes[%d]: no Created, Modified or Deleted node", i)
		}

		node := AffectedNode{
			Kind:           kind,
			Index:          i,
			EntryType:      body.String("LedgerEntryType"),
			LedgerIndex:    body.String("LedgerIndex"),
			PreviousTxnID:  body.String("PreviousTxnID"),
			NewFields:      body.Object("NewFields"),
			FinalFields:    body.Object("FinalFields"),
			PreviousFields: body.Object("PreviousFields"),
		}
		node.PreviousTxnLgrSeq, _ = body.Uint32("PreviousTxnLgrSeq")
		nodes = append(nodes, node)
	}
	return nodes, nil
}
