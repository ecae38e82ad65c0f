package amount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tt := []struct {
		description string
		input       any
		native      bool
		display     string
		wantErr     bool
	}{
		{description: "drops", input: "1500000", native: true, display: "1.5"},
		{description: "one drop", input: "1", native: true, display: "0.000001"},
		{description: "issued", input: map[string]any{"currency": "USD", "issuer": "rIssuer", "value": "-50.25"}, display: "-50.25"},
		{description: "issued tiny exponent", input: map[string]any{"currency": "USD", "issuer": "rIssuer", "value": "1e-15"}, display: "0.000000000000001"},
		{description: "bad drops", input: "1.5", wantErr: true},
		{description: "missing value", input: map[string]any{"currency": "USD"}, wantErr: true},
		{description: "nil", input: nil, wantErr: true},
		{description: "number", input: 12.0, wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			a, err := Parse(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.native, a.IsNative())
			require.Equal(t, tc.display, a.Decimal().String())
		})
	}
}

func TestSub(t *testing.T) {
	prev, _ := Parse("1000000")
	final, _ := Parse("250000")
	d, err := prev.Sub(final)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("0.75").Equal(d))

	usd, _ := Parse(map[string]any{"currency": "USD", "issuer": "r", "value": "1"})
	_, err = prev.Sub(usd)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestXRPAmount(t *testing.T) {
	x := NewXRPAmount(1_234_567)
	require.Equal(t, "1.234567", x.DecimalXRP().String())
	require.Equal(t, XRPAmount(1_234_567), FromDecimalXRP(decimal.RequireFromString("1.2345679")))
	require.Equal(t, XRPAmount(-12), NewXRPAmount(12).Neg())
	require.True(t, x.Sub(x).IsZero())
	require.Equal(t, "1234567", x.String())
}
