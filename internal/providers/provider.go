// Package providers defines the route provider contract. Each tier of the
// fallback chain implements it; the orchestrator walks the chain without
// knowing which tier it is talking to.
package providers

import (
	"context"

	"github.com/OFiDCrypt/giddy-swaps/internal/model"
)

// Provider quotes and executes swaps for one route source. Quote translates
// the provider's native response into the normalized model.Quote; Execute
// consumes the opaque material the quote carried and drives the swap to a
// confirmed signature.
type Provider interface {
	Name() string
	Quote(ctx context.Context, req model.SwapRequest) (model.Quote, error)
	Execute(ctx context.Context, req model.SwapRequest, quote model.Quote) (model.Execution, error)
}

// Signer attaches the wallet signature to a base64-encoded transaction.
// Aggregators exchange unsigned transactions in this encoding.
type Signer interface {
	SignOrder(encoded string) (string, error)
}
