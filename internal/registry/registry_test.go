package registry

import (
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestAssetByMint(t *testing.T) {
	if got, ok := AssetByMint(USDC.Mint); !ok || got.Symbol != "USDC" {
		t.Fatalf("USDC lookup failed: %+v ok=%v", got, ok)
	}
	if got, ok := AssetByMint(GIDDY.Mint); !ok || got.Symbol != "GIDDY" {
		t.Fatalf("GIDDY lookup failed: %+v ok=%v", got, ok)
	}
	if _, ok := AssetByMint(solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")); ok {
		t.Fatal("unknown mint must not resolve")
	}
}

func TestGiddyUsesToken2022(t *testing.T) {
	if GIDDY.TokenProgram != Token2022Program {
		t.Fatal("GIDDY accounts must derive against Token-2022")
	}
	if USDC.TokenProgram != TokenProgram {
		t.Fatal("USDC accounts must derive against the legacy token program")
	}
}

func TestAssociatedTokenAddressVariesByProgram(t *testing.T) {
	owner := solana.MustPublicKeyFromBase58("Vote111111111111111111111111111111111111111")
	usdcATA, err := AssociatedTokenAddress(owner, USDC)
	if err != nil {
		t.Fatalf("derive USDC ATA: %v", err)
	}
	giddyATA, err := AssociatedTokenAddress(owner, GIDDY)
	if err != nil {
		t.Fatalf("derive GIDDY ATA: %v", err)
	}
	if usdcATA.IsZero() || giddyATA.IsZero() {
		t.Fatal("derived addresses must be non-zero")
	}
	if usdcATA == giddyATA {
		t.Fatal("ATAs for different mints must differ")
	}
}
