package model

import (
	"fmt"

	"github.com/shopspring/decimal"

	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
)

// LamportsPerSOL is the native-unit scale of the ledger.
const LamportsPerSOL = 1_000_000_000

// Display converts a base-unit amount into a human-readable decimal string.
// Conversion to display units happens only at presentation boundaries; all
// pipeline arithmetic stays in integer base units.
func (a Asset) Display(base uint64) string {
	return decimal.New(int64(base), -int32(a.Decimals)).StringFixed(6)
}

// BaseUnits converts a decimal display amount (e.g. "10.5") into base units,
// rejecting negative values and precision beyond the asset's decimals.
func (a Asset) BaseUnits(display string) (uint64, error) {
	d, err := decimal.NewFromString(display)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("parse %s amount", a.Symbol), err)
	}
	if d.IsNegative() {
		return 0, clierr.New(clierr.CodeUsage, "amount must be non-negative")
	}
	scaled := d.Shift(int32(a.Decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, clierr.New(clierr.CodeUsage, fmt.Sprintf("amount precision exceeds %d decimals", a.Decimals))
	}
	if !scaled.BigInt().IsUint64() {
		return 0, clierr.New(clierr.CodeUsage, "amount out of range")
	}
	return scaled.BigInt().Uint64(), nil
}

// DisplaySOL renders lamports as SOL.
func DisplaySOL(lamports uint64) string {
	return decimal.New(int64(lamports), -9).StringFixed(6)
}

// SOLToLamports converts a decimal SOL amount to lamports.
func SOLToLamports(sol float64) uint64 {
	d := decimal.NewFromFloat(sol).Shift(9).Truncate(0)
	if d.IsNegative() || !d.BigInt().IsUint64() {
		return 0
	}
	return d.BigInt().Uint64()
}

// SignedDelta renders the difference a-b in an asset's display units,
// negative when b exceeds a. Used for session loss records.
func (a Asset) SignedDelta(x, y uint64) string {
	return decimal.New(int64(x)-int64(y), -int32(a.Decimals)).StringFixed(6)
}
