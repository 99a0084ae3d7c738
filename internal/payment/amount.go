package payment

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrSubMinorAmount    = errors.New("amount has more precision than the currency allows")
	ErrAmountTooLarge    = errors.New("amount is too large")
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits converts a major-unit amount (rupees) to the gateway's minor
// unit (paise) using factor.
func ToMinorUnits(amount decimal.Decimal, factor int64) (int64, error) {
	if factor <= 0 {
		return 0, fmt.Errorf("invalid minor unit factor %d", factor)
	}
	if !amount.IsPositive() {
		return 0, ErrNonPositiveAmount
	}

	minor := amount.Mul(decimal.NewFromInt(factor))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrSubMinorAmount
	}
	if minor.GreaterThan(maxMinorUnits) {
		return 0, ErrAmountTooLarge
	}
	return minor.IntPart(), nil
}

// NewReceipt derives a receipt id from the clock so support can match a
// gateway order to the request that opened it.
func NewReceipt(now time.Time) string {
	return "receipt_" + strconv.FormatInt(now.UnixMilli(), 10)
}
