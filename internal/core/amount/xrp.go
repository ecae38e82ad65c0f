package amount

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// XRPAmount is a native amount in drops.
type XRPAmount int64

const DropsPerXRP XRPAmount = 1_000_000

var dropsPerXRP = decimal.NewFromInt(int64(DropsPerXRP))

func NewXRPAmount(drops int64) XRPAmount {
	return XRPAmount(drops)
}

// ParseDrops parses the integer drop strings used on the wire.
func ParseDrops(s string) (XRPAmount, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid drops %q: %w", s, err)
	}
	return XRPAmount(n), nil
}

// FromDecimalXRP converts an XRP quantity to drops, truncating below one drop.
func FromDecimalXRP(xrp decimal.Decimal) XRPAmount {
	return XRPAmount(xrp.Mul(dropsPerXRP).IntPart())
}

func (x XRPAmount) Drops() int64 {
	return int64(x)
}

// DecimalXRP is the display value: drops divided by one million.
func (x XRPAmount) DecimalXRP() decimal.Decimal {
	return decimal.NewFromInt(int64(x)).Div(dropsPerXRP)
}

func (x XRPAmount) Add(other XRPAmount) XRPAmount {
	return x + other
}

func (x XRPAmount) Sub(other XRPAmount) XRPAmount {
	return x - other
}

func (x XRPAmount) Neg() XRPAmount {
	return -x
}

func (x XRPAmount) IsPositive() bool {
	return x > 0
}

func (x XRPAmount) IsZero() bool {
	return x == 0
}

func (x XRPAmount) String() string {
	return strconv.FormatInt(int64(x), 10)
}
