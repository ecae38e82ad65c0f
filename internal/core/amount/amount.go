package amount

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// XRP is the currency code used for native amounts.
const XRP = "XRP"

var ErrInvalidAmount = errors.New("invalid amount")

// Amount is either a native amount in drops or an issued-currency amount.
type Amount struct {
	Currency string
	Issuer   string

	// Value is the issued-currency quantity; zero for native amounts.
	Value decimal.Decimal
	// Drops is the native quantity; zero for issued amounts.
	Drops XRPAmount
}

// Parse accepts the two JSON shapes of an amount field: a drops string, or
// an object with currency, issuer and value.
func Parse(v any) (Amount, error) {
	switch a := v.(type) {
	case string:
		d, err := ParseDrops(a)
		if err != nil {
			return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		return Amount{Currency: XRP, Drops: d}, nil
	case map[string]any:
		currency, _ := a["currency"].(string)
		issuer, _ := a["issuer"].(string)
		raw, _ := a["value"].(string)
		if currency == "" || raw == "" {
			return Amount{}, fmt.Errorf("%w: missing currency or value", ErrInvalidAmount)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return Amount{}, fmt.Errorf("%w: value %q: %v", ErrInvalidAmount, raw, err)
		}
		return Amount{Currency: currency, Issuer: issuer, Value: value}, nil
	case nil:
		return Amount{}, fmt.Errorf("%w: missing", ErrInvalidAmount)
	}
	return Amount{}, fmt.Errorf("%w: unexpected type %T", ErrInvalidAmount, v)
}

// IsNative reports whether this is an XRP amount.
func (a Amount) IsNative() bool {
	return a.Currency == XRP && a.Issuer == ""
}

// Decimal returns the display quantity: XRP for native amounts, the value otherwise.
func (a Amount) Decimal() decimal.Decimal {
	if a.IsNative() {
		return a.Drops.DecimalXRP()
	}
	return a.Value
}

// Sub returns a minus b in display units. Both must share a currency kind.
func (a Amount) Sub(b Amount) (decimal.Decimal, error) {
	if a.IsNative() != b.IsNative() {
		return decimal.Zero, fmt.Errorf("%w: cannot subtract %s from %s", ErrInvalidAmount, b.Currency, a.Currency)
	}
	if a.IsNative() {
		return a.Drops.Sub(b.Drops).DecimalXRP(), nil
	}
	return a.Value.Sub(b.Value), nil
}

func (a Amount) String() string {
	if a.IsNative() {
		return a.Drops.DecimalXRP().String() + " XRP"
	}
	return a.Value.String() + " " + a.Currency + "/" + a.Issuer
}
