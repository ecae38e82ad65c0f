package parser

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	rAlice = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	rBob   = "rPEPPER7kfTD9w2To4CQk6UCfuHM9c6GDY"
)

func accountRoot(account, prev, final string) string {
	return fmt.Sprintf(`{"ModifiedNode": {"LedgerEntryType": "AccountRoot", "LedgerIndex": "A1",
		"FinalFields": {"Account": %q, "Balance": %q}, "PreviousFields": {"Balance": %q}}}`, account, final, prev)
}

// xrpPaymentTx sends 100 XRP from Alice to Bob for a 12 drop fee.
func xrpPaymentTx(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf(`{"TransactionType": "Payment", "Account": %q, "Destination": %q, "Amount": "100000000",
		"Fee": "12", "Sequence": 4, "DestinationTag": 42, "hash": %q}`, rAlice, rBob, testTxHash)
}

func xrpPaymentMeta() string {
	return fmt.Sprintf(`{"TransactionIndex": 1, "TransactionResult": "tesSUCCESS", "DeliveredAmount": "100000000", "AffectedNodes": [%s, %s]}`,
		accountRoot(rAlice, "1000000000", "899999988"),
		accountRoot(rBob, "50000000", "150000000"))
}

func TestBalanceChangesFeeEntry(t *testing.T) {
	tx := newTx(t, xrpPaymentTx(t), xrpPaymentMeta())

	list, err := BalanceChanges(tx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	feeEntry := list[0]
	require.Equal(t, ChangeFee, feeEntry.Type)
	require.Equal(t, FeeNodeIndex, feeEntry.NodeIndex)
	require.Equal(t, rAlice, feeEntry.Account)
	requireDecimal(t, "-0.000012", feeEntry.Change)
	requireDecimal(t, "999.999988", feeEntry.FinalBalance)

	source := list[1]
	require.Equal(t, ChangePaymentSource, source.Type)
	require.Equal(t, 0, source.NodeIndex)
	requireDecimal(t, "-100", source.Change)
	requireDecimal(t, "899.999988", source.FinalBalance)

	dest := list[2]
	require.Equal(t, ChangePaymentDestination, dest.Type)
	require.Equal(t, rBob, dest.Account)
	requireDecimal(t, "100", dest.Change)
}

func TestBalanceChangesConservation(t *testing.T) {
	tx := newTx(t, xrpPaymentTx(t), xrpPaymentMeta())
	list, err := BalanceChanges(tx)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, c := range list {
		if c.Currency == "XRP" {
			sum = sum.Add(c.Change)
		}
	}
	// Only the burned fee leaves the system.
	requireDecimal(t, "0", sum.Add(fee(tx)))
}

func TestBalanceChangesFeeOnly(t *testing.T) {
	tx := newTx(t,
		fmt.Sprintf(`{"TransactionType": "AccountSet", "Account": %q, "Fee": "15"}`, rAlice),
		fmt.Sprintf(`{"TransactionIndex": 0, "TransactionResult": "tesSUCCESS", "AffectedNodes": [%s]}`,
			accountRoot(rAlice, "1000", "985")))

	list, err := BalanceChanges(tx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, ChangeFee, list[0].Type)
}

func TestBalanceChangesNegativeTrustLineHeldByHighParty(t *testing.T) {
	node := fmt.Sprintf(`{"ModifiedNode": {"LedgerEntryType": "RippleState", "LedgerIndex": "B2",
		"FinalFields": {
			"Balance": {"currency": "USD", "issuer": "rrrrrrrrrrrrrrrrrrrrBZbvji", "value": "-50"},
			"LowLimit": {"currency": "USD", "issuer": %q, "value": "0"},
			"HighLimit": {"currency": "USD", "issuer": %q, "value": "1000"}},
		"PreviousFields": {"Balance": {"currency": "USD", "issuer": "rrrrrrrrrrrrrrrrrrrrBZbvji", "value": "-40"}}}}`, rAlice, rBob)
	tx := newTx(t,
		fmt.Sprintf(`{"TransactionType": "Payment", "Account": %q, "Destination": %q, "Fee": "12",
			"Amount": {"currency": "USD", "issuer": %q, "value": "10"}}`, rAlice, rBob, rAlice),
		fmt.Sprintf(`{"TransactionIndex": 0, "TransactionResult": "tesSUCCESS", "AffectedNodes": [%s]}`, node))

	list, err := BalanceChanges(tx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	c := list[0]
	require.Equal(t, rBob, c.Account)
	require.Equal(t, rAlice, c.Issuer)
	require.Equal(t, "USD", c.Currency)
	requireDecimal(t, "50", c.FinalBalance)
	requireDecimal(t, "10", c.Change)
	require.Equal(t, ChangePaymentDestination, c.Type)
}

func TestBalanceChangesPositiveTrustLineHeldByLowParty(t *testing.T) {
	node := fmt.Sprintf(`{"CreatedNode": {"LedgerEntryType": "RippleState", "LedgerIndex": "B2",
		"NewFields": {
			"Balance": {"currency": "EUR", "issuer": "rrrrrrrrrrrrrrrrrrrrBZbvji", "value": "7.5"},
			"LowLimit": {"currency": "EUR", "issuer": %q, "value": "100"},
			"HighLimit": {"currency": "EUR", "issuer": %q, "value": "0"}}}}`, rAlice, rBob)
	tx := newTx(t,
		fmt.Sprintf(`{"TransactionType": "OfferCreate", "Account": %q, "Fee": "12"}`, rAlice),
		fmt.Sprintf(`{"TransactionIndex": 0, "TransactionResult": "tesSUCCESS", "AffectedNodes": [%s]}`, node))

	list, err := BalanceChanges(tx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, rAlice, list[0].Account)
	require.Equal(t, rBob, list[0].Issuer)
	requireDecimal(t, "7.5", list[0].Change)
	require.Equal(t, ChangeExchange, list[0].Type)
}

func TestBalanceChangesTrustLineCrossingZero(t *testing.T) {
	// The high party held 5 before the offer and owes 10 after it; the whole
	// change stays with the high party.
	node := fmt.Sprintf(`{"ModifiedNode": {"LedgerEntryType": "RippleState", "LedgerIndex": "B2",
		"FinalFields": {
			"Balance": {"currency": "USD", "issuer": "rrrrrrrrrrrrrrrrrrrrBZbvji", "value": "10"},
			"LowLimit": {"currency": "USD", "issuer": %q, "value": "100"},
			"HighLimit": {"currency": "USD", "issuer": %q, "value": "100"}},
		"PreviousFields": {"Balance": {"currency": "USD", "issuer": "rrrrrrrrrrrrrrrrrrrrBZbvji", "value": "-5"}}}}`, rAlice, rBob)
	tx := newTx(t,
		fmt.Sprintf(`{"TransactionType": "OfferCreate", "Account": %q, "Fee": "12"}`, rAlice),
		fmt.Sprintf(`{"TransactionIndex": 0, "TransactionResult": "tesSUCCESS", "AffectedNodes": [%s]}`, node))

	list, err := BalanceChanges(tx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	c := list[0]
	require.Equal(t, rBob, c.Account)
	require.Equal(t, rAlice, c.Issuer)
	requireDecimal(t, "-10", c.FinalBalance)
	requireDecimal(t, "-15", c.Change)
	require.Equal(t, ChangeIntermediary, c.Type)
}

func TestBalanceChangesSkipsEmptyTrustLine(t *testing.T) {
	node := fmt.Sprintf(`{"CreatedNode": {"LedgerEntryType": "RippleState", "LedgerIndex": "B2",
		"NewFields": {
			"Balance": {"currency": "EUR", "issuer": "rrrrrrrrrrrrrrrrrrrrBZbvji", "value": "0"},
			"LowLimit": {"currency": "EUR", "issuer": %q, "value": "100"},
			"HighLimit": {"currency": "EUR", "issuer": %q, "value": "0"}}}}`, rAlice, rBob)
	tx := newTx(t,
		fmt.Sprintf(`{"TransactionType": "TrustSet", "Account": %q, "Fee": "12"}`, rAlice),
		fmt.Sprintf(`{"TransactionIndex": 0, "TransactionResult": "tesSUCCESS", "AffectedNodes": [%s]}`, node))

	list, err := BalanceChanges(tx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestBalanceChangesClaimedOnly(t *testing.T) {
	tx := newTx(t, xrpPaymentTx(t), xrpPaymentMeta())
	tx.Result = "tecPATH_DRY"
	list, err := BalanceChanges(tx)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	tx.Result = "tefPAST_SEQ"
	list, err = BalanceChanges(tx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestBalanceChangesEscrowFinish(t *testing.T) {
	tx := newTx(t, escrowFinishTx(), escrowFinishMeta())

	list, err := BalanceChanges(tx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.Equal(t, ChangeFee, list[0].Type)
	require.Equal(t, rFinisher, list[0].Account)

	c := list[1]
	require.Equal(t, rBob, c.Account)
	require.Equal(t, ChangeEscrowFinish, c.Type)
	require.Equal(t, rBob, c.EscrowCounterparty)
	require.NotNil(t, c.EscrowBalanceChange)
	requireDecimal(t, "-1", *c.EscrowBalanceChange)
}

func TestBalanceChangesPaychanPayout(t *testing.T) {
	tx := newTx(t, paychanClaimTx(), paychanClaimMeta())

	list, err := BalanceChanges(tx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	c := list[1]
	require.Equal(t, rBob, c.Account)
	requireDecimal(t, "2", c.Change)
	require.Equal(t, ChangePaychanPayout, c.Type)
	require.Equal(t, rAlice, c.PaychanCounterparty)
	requireDecimal(t, "-2", *c.PaychanBalanceChange)
	requireDecimal(t, "5", *c.PaychanFundFinalBalance)
	requireDecimal(t, "2", *c.PaychanFinalBalance)
}
