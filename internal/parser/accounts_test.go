package parser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAffectedAccounts(t *testing.T) {
	line := fmt.Sprintf(`{"ModifiedNode": {"LedgerEntryType": "RippleState", "LedgerIndex": "B2",
		"FinalFields": {
			"Balance": {"currency": "USD", "issuer": "rrrrrrrrrrrrrrrrrrrrBZbvji", "value": "-15"},
			"LowLimit": {"currency": "USD", "issuer": %q, "value": "0"},
			"HighLimit": {"currency": "USD", "issuer": %q, "value": "100"}},
		"PreviousFields": {"Balance": {"currency": "USD", "issuer": "rrrrrrrrrrrrrrrrrrrrBZbvji", "value": "-5"}}}}`, rFinisher, rBob)
	tx := newTx(t,
		fmt.Sprintf(`{"TransactionType": "Payment", "Account": %q, "Destination": %q, "Amount": "1", "Fee": "12"}`, rAlice, rBob),
		fmt.Sprintf(`{"TransactionIndex": 0, "TransactionResult": "tecPATH_DRY", "AffectedNodes": [%s, %s]}`,
			accountRoot("rNotAnAddress", "10", "5"), line))

	list, err := AffectedAccounts(tx)
	require.NoError(t, err)

	var got []string
	for _, a := range list {
		got = append(got, a.Account)
		require.Equal(t, "Payment", a.TxType)
		require.Equal(t, "tecPATH_DRY", a.TxResult)
	}
	// rrrrrrrrrrrrrrrrrrrrBZbvji appears only as a trust line balance issuer.
	require.Equal(t, []string{rAlice, rBob, rFinisher, "rrrrrrrrrrrrrrrrrrrrBZbvji"}, got)
}

func TestAccountsCreated(t *testing.T) {
	tx := newTx(t,
		fmt.Sprintf(`{"TransactionType": "Payment", "Account": %q, "Destination": %q, "Amount": "20000000", "Fee": "12"}`, rAlice, rBob),
		fmt.Sprintf(`{"TransactionIndex": 0, "TransactionResult": "tesSUCCESS", "AffectedNodes": [
			{"CreatedNode": {"LedgerEntryType": "AccountRoot", "LedgerIndex": "A9", "NewFields": {"Account": %q, "Balance": "20000000"}}},
			%s]}`, rBob, accountRoot(rAlice, "100000000", "79999988")))

	list, err := AccountsCreated(tx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, rBob, list[0].Account)
	require.Equal(t, rAlice, list[0].Parent)
}
