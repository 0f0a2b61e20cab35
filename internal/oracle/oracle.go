// Package oracle maintains the wallet balance snapshot the session loop
// reads between rounds. Reads are cached for a short TTL, resolved token
// accounts are memoized for the process lifetime, and lookups never return
// an error: a balance that cannot be read reads as zero, which downstream
// gates treat as "insufficient".
package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/OFiDCrypt/giddy-swaps/internal/backoff"
	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
)

// ChainReader is the slice of the ledger client the oracle depends on.
type ChainReader interface {
	NativeBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	TokenAccountByOwner(ctx context.Context, owner, mint solana.PublicKey) (solana.PublicKey, bool, error)
	TokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

const cacheTTL = 5 * time.Second

type Oracle struct {
	reader ChainReader
	owner  solana.PublicKey
	assets []model.Asset
	log    zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	snapshot model.Snapshot
	accounts map[string]solana.PublicKey
}

func New(reader ChainReader, owner solana.PublicKey, assets []model.Asset, log zerolog.Logger) *Oracle {
	return &Oracle{
		reader:   reader,
		owner:    owner,
		assets:   assets,
		log:      log.With().Str("component", "oracle").Logger(),
		now:      time.Now,
		accounts: make(map[string]solana.PublicKey),
	}
}

// Snapshot returns the current balance view, refreshing from chain when the
// cached copy is older than the TTL. It never fails; unreadable balances
// come back as zero after the retry budget is spent.
func (o *Oracle) Snapshot(ctx context.Context) model.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.snapshot.CapturedAt.IsZero() && o.now().Sub(o.snapshot.CapturedAt) < cacheTTL {
		return o.snapshot
	}

	snap := model.Snapshot{
		Tokens:     make(map[string]uint64, len(o.assets)),
		CapturedAt: o.now(),
	}
	snap.Native = o.readWithRetry(ctx, "SOL", func(ctx context.Context) (uint64, error) {
		return o.reader.NativeBalance(ctx, o.owner)
	})
	for _, asset := range o.assets {
		asset := asset
		snap.Tokens[asset.Mint.String()] = o.readWithRetry(ctx, asset.Symbol, func(ctx context.Context) (uint64, error) {
			return o.tokenBalanceLocked(ctx, asset)
		})
	}

	o.snapshot = snap
	return snap
}

// Token is a convenience read of a single asset balance through the cache.
func (o *Oracle) Token(ctx context.Context, asset model.Asset) uint64 {
	return o.Snapshot(ctx).Token(asset.Mint)
}

// Native returns the cached lamport balance.
func (o *Oracle) Native(ctx context.Context) uint64 {
	return o.Snapshot(ctx).Native
}

// Invalidate drops the cached snapshot so the next read hits the chain.
// Called only after a swap commits; failed attempts leave the cache alone.
func (o *Oracle) Invalidate() {
	o.mu.Lock()
	o.snapshot = model.Snapshot{}
	o.mu.Unlock()
}

// tokenBalanceLocked resolves the asset's token account (memoized) and reads
// its balance. A wallet with no account for the mint holds zero.
func (o *Oracle) tokenBalanceLocked(ctx context.Context, asset model.Asset) (uint64, error) {
	account, ok := o.accounts[asset.Mint.String()]
	if !ok {
		found, exists, err := o.reader.TokenAccountByOwner(ctx, o.owner, asset.Mint)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, nil
		}
		o.accounts[asset.Mint.String()] = found
		account = found
	}
	return o.reader.TokenAccountBalance(ctx, account)
}

// readWithRetry runs a balance read, retrying only rate-limit failures. Any
// other failure, or an exhausted budget, degrades to zero with a warning.
func (o *Oracle) readWithRetry(ctx context.Context, symbol string, read func(ctx context.Context) (uint64, error)) uint64 {
	var value uint64
	policy := backoff.Exponential(4, 500*time.Millisecond)
	err := policy.Retry(ctx, func(ctx context.Context) error {
		v, err := read(ctx)
		if err != nil {
			if clierr.Is(err, clierr.CodeRateLimited) {
				return err
			}
			o.log.Warn().Err(err).Str("asset", symbol).Msg("balance read failed, treating as zero")
			value = 0
			return nil
		}
		value = v
		return nil
	})
	if err != nil {
		o.log.Warn().Err(err).Str("asset", symbol).Msg("balance read rate limited, treating as zero")
		return 0
	}
	return value
}
