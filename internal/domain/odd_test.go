package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateOddValue(t *testing.T) {
	tests := []struct {
		value string
		valid bool
	}{
		{"1", false},
		{"0.5", false},
		{"1.001", true},
		{"2.10", true},
		{"9999999.999", true},
		{"10000000", false},
	}
	for _, tt := range tests {
		err := ValidateOddValue(decimal.RequireFromString(tt.value))
		if tt.valid && err != nil {
			t.Errorf("ValidateOddValue(%s) = %v, want nil", tt.value, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidOdd) {
			t.Errorf("ValidateOddValue(%s) = %v, want ErrInvalidOdd", tt.value, err)
		}
	}
}
