package trade

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToNativeAmount scales a human-readable amount into native integer units at
// the mint's decimal count, rounding up. Rounding up keeps quoted prices
// honored: a seller never receives less than asked and a buyer's mantissa
// always covers the quote.
func ToNativeAmount(value decimal.Decimal, decimals uint8) (uint64, error) {
	if value.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrAmountOutOfRange, value)
	}
	scaled := value.Shift(int32(decimals)).Ceil()
	native := scaled.BigInt()
	if !native.IsUint64() {
		return 0, fmt.Errorf("%w: %s at %d decimals overflows u64", ErrAmountOutOfRange, value, decimals)
	}
	return native.Uint64(), nil
}
