package parser

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxRef locates an event in ledger history.
type TxRef struct {
	LedgerIndex  uint32
	TxIndex      uint32
	TxHash       string
	ExecutedTime time.Time
	Client       string
}

// Leg is one side of a trade or offer.
type Leg struct {
	Currency string
	Issuer   string
	Amount   decimal.Decimal
}

// Issue names a currency without a quantity.
type Issue struct {
	Currency string
	Issuer   string
}

// Exchange is one exercised offer, expressed with a canonically ordered pair.
type Exchange struct {
	TxRef
	NodeIndex int
	TxType    string

	Base    Leg
	Counter Leg
	// Rate is counter units per base unit.
	Rate decimal.Decimal

	Buyer    string
	Seller   string
	Taker    string
	Provider string
	Sequence uint32

	Autobridged *Issue
}

// Offer change types, in classification precedence order.
const (
	OfferCreate              = "create"
	OfferPartialFill         = "partial_fill"
	OfferCancel              = "cancel"
	OfferReplace             = "replace"
	OfferFill                = "fill"
	OfferUnfundedCancel      = "unfunded_cancel"
	OfferUnfundedPartialFill = "unfunded_partial_fill"
)

// OfferChange is one lifecycle step of an order book offer.
type OfferChange struct {
	TxRef
	NodeIndex  int
	ChangeType string

	Account    string
	Sequence   uint32
	Expiration *time.Time

	TakerPays Leg
	TakerGets Leg

	// OldOffer is the sequence an OfferCreate replaced; NewOffer the
	// sequence of the offer that replaced a deleted one.
	OldOffer uint32
	NewOffer uint32
}

// Balance change types.
const (
	ChangeFee                = "fee"
	ChangeExchange           = "exchange"
	ChangeIntermediary       = "intermediary"
	ChangePaymentSource      = "payment_source"
	ChangePaymentDestination = "payment_destination"
	ChangeEscrowCreate       = "escrow_create"
	ChangeEscrowFinish       = "escrow_finish"
	ChangeEscrowCancel       = "escrow_cancel"
	ChangePaychanFund        = "paychannel_fund"
	ChangePaychanPayout      = "paychannel_payout"
)

// FeeNodeIndex marks the synthetic fee entry.
const FeeNodeIndex = -1

// BalanceChange is a change to one holder's balance of one currency.
type BalanceChange struct {
	TxRef
	NodeIndex int
	Type      string

	Account      string
	Currency     string
	Issuer       string
	Change       decimal.Decimal
	FinalBalance decimal.Decimal

	EscrowCounterparty  string
	EscrowBalanceChange *decimal.Decimal

	PaychanCounterparty     string
	PaychanFundChange       *decimal.Decimal
	PaychanBalanceChange    *decimal.Decimal
	PaychanFundFinalBalance *decimal.Decimal
	PaychanFinalBalance     *decimal.Decimal
}

// CurrencyAmount is a quantity in display units.
type CurrencyAmount struct {
	Currency string
	Issuer   string
	Value    decimal.Decimal
}

// Payment is a successful transfer between two distinct accounts.
type Payment struct {
	TxRef

	Source      string
	Destination string

	Currency        string
	Issuer          string
	Amount          decimal.Decimal
	DeliveredAmount decimal.Decimal
	SourceCurrency  string
	MaxAmount       *decimal.Decimal
	Fee             decimal.Decimal

	DestinationTag *uint32
	SourceTag      *uint32
	InvoiceID      string

	SourceBalanceChanges      []CurrencyAmount
	DestinationBalanceChanges []CurrencyAmount
}

// FeeSummary aggregates the fees paid in one ledger, in XRP.
type FeeSummary struct {
	LedgerIndex uint32
	CloseTime   time.Time
	TxCount     int

	Total decimal.Decimal
	Avg   decimal.Decimal
	Max   decimal.Decimal
	Min   decimal.Decimal
}

// EscrowEvent is an EscrowCreate, EscrowFinish or EscrowCancel.
type EscrowEvent struct {
	TxRef
	TxType string
	Flags  uint32
	Fee    decimal.Decimal

	Amount      decimal.Decimal
	Account     string
	Owner       string
	Destination string

	DestinationTag *uint32
	SourceTag      *uint32

	CreateTxSeq uint32
	CreateTx    string
	Condition   string
	Fulfillment string

	CancelAfter *time.Time
	FinishAfter *time.Time
}

// PaychanEvent is a PaymentChannelCreate, PaymentChannelFund or PaymentChannelClaim.
type PaychanEvent struct {
	TxRef
	TxType string
	Flags  uint32
	Fee    decimal.Decimal

	Channel   string
	Signature string
	PublicKey string
	Settle    *uint32

	Account     string
	Source      string
	Destination string

	DestinationTag *uint32
	SourceTag      *uint32

	Amount  *decimal.Decimal
	Balance *decimal.Decimal

	CancelAfter *time.Time
	Expiration  *time.Time
}

// Memo is one decoded transaction memo.
type Memo struct {
	TxRef
	MemoIndex int

	Account        string
	Destination    string
	DestinationTag *uint32
	SourceTag      *uint32

	Type         string
	TypeEncoding string
	Data         string
	Encoding     string
	Format       string
}

// AffectedAccount records that a transaction touched an account.
type AffectedAccount struct {
	TxRef
	Account  string
	TxType   string
	TxResult string
}

// AccountCreated records a funding transaction creating an account.
type AccountCreated struct {
	TxRef
	Account string
	Parent  string
}
