package parser

import (
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// Paychans extracts a successful PaymentChannelCreate, PaymentChannelFund or
// PaymentChannelClaim, reading the channel state from its PayChannel entry.
func Paychans(tx *ledger.Transaction) ([]PaychanEvent, error) {
	if !tx.Successful() {
		return nil, nil
	}
	switch tx.Type {
	case "PaymentChannelCreate", "PaymentChannelFund", "PaymentChannelClaim":
	default:
		return nil, nil
	}

	var channel ledger.Fields
	var channelID string
	for i := range tx.AffectedNodes {
		n := &tx.AffectedNodes[i]
		if n.EntryType == ledger.EntryPayChannel {
			channel = n.Fields()
			channelID = n.LedgerIndex
			break
		}
	}

	flags, _ := tx.Fields.Uint32("Flags")
	p := PaychanEvent{
		TxRef:          txRef(tx),
		TxType:         tx.Type,
		Flags:          flags,
		Fee:            fee(tx),
		Channel:        tx.Fields.String("Channel"),
		Signature:      tx.Fields.String("Signature"),
		PublicKey:      tx.Fields.String("PublicKey"),
		Settle:         optUint32(tx.Fields, "SettleDelay"),
		Account:        tx.Account,
		Source:         channel.String("Account"),
		Destination:    channel.String("Destination"),
		DestinationTag: optUint32(channel, "DestinationTag"),
		SourceTag:      optUint32(channel, "SourceTag"),
		CancelAfter:    rippleTime(tx.Fields, "CancelAfter"),
		Expiration:     rippleTime(tx.Fields, "Expiration"),
	}
	if p.Channel == "" {
		p.Channel = channelID
	}
	if d, ok := dropsToXRP(channel["Amount"]); ok {
		p.Amount = &d
	}
	if d, ok := dropsToXRP(channel["Balance"]); ok {
		p.Balance = &d
	}
	return []PaychanEvent{p}, nil
}
