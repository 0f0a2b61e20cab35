package model

import (
	"testing"

	"github.com/gagliardetto/solana-go"
)

var usdc = Asset{
	Symbol:   "USDC",
	Mint:     solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
	Decimals: 6,
}

func TestBaseUnitsRoundTrip(t *testing.T) {
	base, err := usdc.BaseUnits("10")
	if err != nil {
		t.Fatalf("BaseUnits failed: %v", err)
	}
	if base != 10_000_000 {
		t.Fatalf("unexpected base units: %d", base)
	}
	if got := usdc.Display(base); got != "10.000000" {
		t.Fatalf("unexpected display: %s", got)
	}
}

func TestBaseUnitsRejectsExcessPrecision(t *testing.T) {
	if _, err := usdc.BaseUnits("1.0000001"); err == nil {
		t.Fatal("expected precision error")
	}
}

func TestBaseUnitsRejectsNegative(t *testing.T) {
	if _, err := usdc.BaseUnits("-1"); err == nil {
		t.Fatal("expected negative amount error")
	}
}

func TestSignedDeltaNegative(t *testing.T) {
	if got := usdc.SignedDelta(1_000_000, 3_500_000); got != "-2.500000" {
		t.Fatalf("unexpected delta: %s", got)
	}
}

func TestCorrelationIDIsFilesystemSafe(t *testing.T) {
	id := NewCorrelationID(mustTime(t, "2026-08-29T10:15:04.123Z"))
	if id != "2026-08-29T10-15-04-123Z" {
		t.Fatalf("unexpected correlation id: %s", id)
	}
}

func TestPhaseFlip(t *testing.T) {
	if PhaseBuy.Flip() != PhaseSell || PhaseSell.Flip() != PhaseBuy {
		t.Fatal("phase flip broken")
	}
}
