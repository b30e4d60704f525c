package trade

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToNativeAmount(t *testing.T) {
	cases := []struct {
		name     string
		value    string
		decimals uint8
		want     uint64
	}{
		{"whole units", "1.00", 2, 100},
		{"rounds up", "1.001", 2, 101},
		{"sol lamports", "1.5", 9, 1_500_000_000},
		{"sub-lamport rounds up", "0.0000000001", 9, 1},
		{"zero", "0", 9, 0},
		{"zero decimals", "3", 0, 3},
		{"fraction at zero decimals rounds up", "2.1", 0, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToNativeAmount(decimal.RequireFromString(tc.value), tc.decimals)
			if err != nil {
				t.Fatalf("convert %s at %d decimals: %v", tc.value, tc.decimals, err)
			}
			if got != tc.want {
				t.Errorf("convert %s at %d decimals: got %d, want %d", tc.value, tc.decimals, got, tc.want)
			}
		})
	}
}

func TestToNativeAmountRejectsOutOfRange(t *testing.T) {
	if _, err := ToNativeAmount(decimal.RequireFromString("-1"), 9); !errors.Is(err, ErrAmountOutOfRange) {
		t.Errorf("negative amount: got %v, want ErrAmountOutOfRange", err)
	}
	if _, err := ToNativeAmount(decimal.RequireFromString("20000000000"), 9); !errors.Is(err, ErrAmountOutOfRange) {
		t.Errorf("overflowing amount: got %v, want ErrAmountOutOfRange", err)
	}
}
