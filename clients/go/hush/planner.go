package hush

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// TokenDecimals is the STRK token's decimal precision.
const TokenDecimals = 18

// DefaultFeeReserve is the per-claim fee reserve in the token's smallest
// unit: 0.02 STRK.
var DefaultFeeReserve = big.NewInt(20_000_000_000_000_000)

// ComputeSpendable returns balance minus deploy fee, transfer fee and safety
// buffer. The result may be negative or zero; callers must check before
// transferring. All arithmetic is exact integer arithmetic.
func ComputeSpendable(balance, deployFee, transferFee, buffer *big.Int) *big.Int {
	spendable := new(big.Int).Sub(balance, deployFee)
	spendable.Sub(spendable, transferFee)
	spendable.Sub(spendable, buffer)
	return spendable
}

// PickTransferAmount returns min(requested, spendable).
func PickTransferAmount(requested, spendable *big.Int) *big.Int {
	if requested.Cmp(spendable) < 0 {
		return new(big.Int).Set(requested)
	}
	return new(big.Int).Set(spendable)
}

// HasPositiveReceiverDelta reports whether the receiver's balance strictly
// increased across the claim.
func HasPositiveReceiverDelta(before, after *big.Int) bool {
	return after.Cmp(before) > 0
}

var amountRegex = regexp.MustCompile(`^\d*(\.\d*)?$`)

// ParseTokenAmount converts a decimal token amount like "10" or "0.5" to
// the smallest integer unit. Excess fractional digits are truncated.
func ParseTokenAmount(value string) (*big.Int, error) {
	normalized := strings.TrimSpace(value)
	if normalized == "" || normalized == "." || !amountRegex.MatchString(normalized) {
		return nil, fmt.Errorf("invalid amount %q", value)
	}

	whole, fraction, _ := strings.Cut(normalized, ".")
	if whole == "" {
		whole = "0"
	}
	if len(fraction) > TokenDecimals {
		fraction = fraction[:TokenDecimals]
	}
	for len(fraction) < TokenDecimals {
		fraction += "0"
	}

	amount, ok := new(big.Int).SetString(whole+fraction, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}
