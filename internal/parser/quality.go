package parser

import (
	"fmt"
	"strconv"

	"github.com/LeJamon/xrpl-ingest/internal/core/amount"
	"github.com/shopspring/decimal"
)

// qualityHexLen is the width of the packed quality at the tail of a book directory key.
const qualityHexLen = 16

// ParseQuality decodes the exchange rate packed into the last 8 bytes of an
// offer's BookDirectory: one exponent byte biased by 100, then a 56-bit
// mantissa. The result is pays per gets in display units.
func ParseQuality(bookDirectory, pays, gets string) (decimal.Decimal, error) {
	if len(bookDirectory) < qualityHexLen {
		return decimal.Zero, fmt.Errorf("book directory %q too short", bookDirectory)
	}
	q := bookDirectory[len(bookDirectory)-qualityHexLen:]

	exp, err := strconv.ParseUint(q[:2], 16, 8)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quality exponent %q: %w", q[:2], err)
	}
	mantissa, err := strconv.ParseUint(q[2:], 16, 64)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quality mantissa %q: %w", q[2:], err)
	}
	if mantissa == 0 {
		return decimal.Zero, fmt.Errorf("zero quality in %q", bookDirectory)
	}

	quality := decimal.New(int64(mantissa), int32(exp)-100)

	var shift int32
	if pays == amount.XRP {
		shift -= 6
	}
	if gets == amount.XRP {
		shift += 6
	}
	return quality.Shift(shift), nil
}
