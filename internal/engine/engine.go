// Package engine normalizes the two transaction submission modes into one
// surface: signing a provider-built order for the provider to land, and the
// full sign/submit/confirm path against the ledger.
package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// Wallet signs base64-encoded transactions.
type Wallet interface {
	SignBase64(encoded string) (string, error)
}

// Chain lands signed transactions and blocks until confirmation.
type Chain interface {
	SubmitRawBase64(ctx context.Context, encoded string) (string, error)
}

type Engine struct {
	wallet Wallet
	chain  Chain
	log    zerolog.Logger
}

func New(wallet Wallet, chain Chain, log zerolog.Logger) *Engine {
	return &Engine{
		wallet: wallet,
		chain:  chain,
		log:    log.With().Str("component", "engine").Logger(),
	}
}

// SignOrder attaches the wallet signature to a provider-built transaction
// and returns it re-encoded. The provider submits it; no confirmation loop
// runs here.
func (e *Engine) SignOrder(encoded string) (string, error) {
	return e.wallet.SignBase64(encoded)
}

// SubmitAndConfirm signs an unsigned transaction, sends it with preflight
// checks, and waits for confirmed commitment. Returns the signature even
// when confirmation subsequently fails, so callers can report it.
func (e *Engine) SubmitAndConfirm(ctx context.Context, encoded string) (string, error) {
	signed, err := e.wallet.SignBase64(encoded)
	if err != nil {
		return "", err
	}
	sig, err := e.chain.SubmitRawBase64(ctx, signed)
	if err != nil {
		if sig != "" {
			e.log.Warn().Str("signature", sig).Err(err).Msg("submitted but not confirmed")
		}
		return sig, err
	}
	e.log.Debug().Str("signature", sig).Msg("transaction confirmed")
	return sig, nil
}
