// Package units converts between decimal ETH amounts and integer wei.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimal places between ETH and wei.
const EtherDecimals = 18

var ErrNegativeAmount = errors.New("amount must not be negative")

// ToWei parses a decimal ETH amount such as "1.5" and returns it in wei.
// Digits below one wei are truncated, never rounded.
func ToWei(eth string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(eth))
	if err != nil {
		return nil, fmt.Errorf("invalid ETH amount %q: %w", eth, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid ETH amount %q: %w", eth, ErrNegativeAmount)
	}
	return d.Shift(EtherDecimals).BigInt(), nil
}

// FormatEther renders a wei amount as a decimal ETH string without trailing
// zeros ("1", "0.5", "0.000000000000000001").
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals).String()
}
