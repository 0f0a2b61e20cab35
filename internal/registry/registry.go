// Package registry pins the on-chain addresses the bot operates against.
// The pair, its pool, and the owning token programs are fixed at build time;
// nothing here is configurable because a wrong address moves real funds.
package registry

import (
	"github.com/gagliardetto/solana-go"

	"github.com/OFiDCrypt/giddy-swaps/internal/model"
)

var (
	SystemProgram        = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	TokenProgram         = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	Token2022Program     = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	AssociatedTokenProg  = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	ComputeBudgetProgram = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
)

// USDC is the quote-side asset. Its accounts live under the legacy SPL Token
// program.
var USDC = model.Asset{
	Symbol:       "USDC",
	Mint:         solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
	Decimals:     6,
	TokenProgram: TokenProgram,
}

// GIDDY is the base-side asset. It is a Token-2022 mint, so its associated
// accounts derive against the Token-2022 program, not the legacy one.
var GIDDY = model.Asset{
	Symbol:       "GIDDY",
	Mint:         solana.MustPublicKeyFromBase58("8kQzvMELBQGSiFmrXqLuDSpYVLKkNoXE4bUQCC14wj3Z"),
	Decimals:     6,
	TokenProgram: Token2022Program,
}

// DLMMPool identifies a concentrated-liquidity pool plus the satellite
// accounts its swap instruction requires.
type DLMMPool struct {
	Program        solana.PublicKey
	Pool           solana.PublicKey
	BinArrayBitmap solana.PublicKey
	TokenXMint     solana.PublicKey
	TokenYMint     solana.PublicKey
}

// GiddyUSDCPool is the direct-pool escape hatch used when both aggregator
// tiers fail. Token X is GIDDY, token Y is USDC.
var GiddyUSDCPool = DLMMPool{
	Program:        solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"),
	Pool:           solana.MustPublicKeyFromBase58("8pJonw6WVjQkDndb6HGuCMdxb4sXiDfeFumxconoKB5"),
	BinArrayBitmap: solana.MustPublicKeyFromBase58("CBxa8uqt4n1BVAupQGY6AxRKEYq7RQKVeJnvDHAZCykT"),
	TokenXMint:     GIDDY.Mint,
	TokenYMint:     USDC.Mint,
}

// AssetByMint resolves one of the two tracked assets from its mint.
func AssetByMint(mint solana.PublicKey) (model.Asset, bool) {
	switch mint {
	case USDC.Mint:
		return USDC, true
	case GIDDY.Mint:
		return GIDDY, true
	}
	return model.Asset{}, false
}

// AssociatedTokenAddress derives the canonical associated token account for
// owner and asset, honoring the asset's owning token program.
func AssociatedTokenAddress(owner solana.PublicKey, asset model.Asset) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{owner.Bytes(), asset.TokenProgram.Bytes(), asset.Mint.Bytes()},
		AssociatedTokenProg,
	)
	return addr, err
}
