package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseQuality(t *testing.T) {
	tt := []struct {
		description string
		book        string
		pays, gets  string
		want        string
	}{
		{description: "issued over issued", book: bookDirectory("55071AFD498D0000"), pays: "USD", gets: "EUR", want: "2"},
		{description: "xrp pays", book: bookDirectory("5B071AFD498D0000"), pays: "XRP", gets: "USD", want: "2"},
		{description: "xrp gets", book: bookDirectory("4E11C37937E08000"), pays: "USD", gets: "XRP", want: "0.5"},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			q, err := ParseQuality(tc.book, tc.pays, tc.gets)
			require.NoError(t, err)
			requireDecimal(t, tc.want, q)
		})
	}
}

func TestParseQualityRejectsBadInput(t *testing.T) {
	_, err := ParseQuality("", "USD", "XRP")
	require.Error(t, err)

	_, err = ParseQuality(bookDirectory("ZZ071AFD498D0000"), "USD", "XRP")
	require.Error(t, err)

	_, err = ParseQuality(bookDirectory("5500000000000000"), "USD", "XRP")
	require.Error(t, err)
}
