// Package orchestrator walks the fallback chain for a single swap request:
// preflight gates, account readiness, then each tier in order until one
// lands a transaction. Every attempt leaves an audit artifact; balances are
// invalidated only after a tier succeeds.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/OFiDCrypt/giddy-swaps/internal/audit"
	"github.com/OFiDCrypt/giddy-swaps/internal/backoff"
	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
	"github.com/OFiDCrypt/giddy-swaps/internal/providers"
)

// AllRoutesFailed is the terminal error message when every tier is spent.
const AllRoutesFailed = "All alternate routes failed"

// BalanceSource is the oracle slice the orchestrator consumes.
type BalanceSource interface {
	Snapshot(ctx context.Context) model.Snapshot
	Invalidate()
}

// AccountPreparer guarantees token accounts exist before any provider runs.
type AccountPreparer interface {
	EnsureTokenAccount(ctx context.Context, asset model.Asset) (solana.PublicKey, error)
}

// Recorder receives one artifact per attempt and one per terminal outcome.
type Recorder interface {
	RecordAttempt(attempt audit.Attempt)
	RecordOutcome(outcome model.Outcome)
}

type Orchestrator struct {
	balances      BalanceSource
	accounts      AccountPreparer
	recorder      Recorder
	primary       providers.Provider
	fallbacks     []providers.Provider
	minReserve    uint64
	primaryPolicy backoff.Policy
	now           func() time.Time
	log           zerolog.Logger
}

func New(balances BalanceSource, accounts AccountPreparer, recorder Recorder, primary providers.Provider, fallbacks []providers.Provider, minReserveLamports uint64, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		balances:      balances,
		accounts:      accounts,
		recorder:      recorder,
		primary:       primary,
		fallbacks:     fallbacks,
		minReserve:    minReserveLamports,
		primaryPolicy: backoff.Exponential(3, time.Second),
		now:           time.Now,
		log:           log.With().Str("component", "orchestrator").Logger(),
	}
}

// Swap drives one request through the tier cascade. The error return is
// reserved for precondition and account-preparation failures, which callers
// treat as fatal; every provider-level failure is folded into the Outcome.
func (o *Orchestrator) Swap(ctx context.Context, req model.SwapRequest) (model.Outcome, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = model.NewCorrelationID(o.now())
	}
	log := o.log.With().Str("correlation_id", req.CorrelationID).Logger()

	if err := o.preflight(ctx, req); err != nil {
		return model.Outcome{}, err
	}
	if err := o.prepareAccounts(ctx, req); err != nil {
		return model.Outcome{}, err
	}

	// Primary gets a retry budget over the whole quote+execute pair.
	var winner *tierResult
	primaryErr := o.primaryPolicy.Retry(ctx, func(ctx context.Context) error {
		res := o.attempt(ctx, o.primary, req)
		if res.err != nil {
			return res.err
		}
		winner = &res
		return nil
	})
	if primaryErr != nil {
		log.Warn().Err(primaryErr).Str("provider", o.primary.Name()).Msg("primary tier exhausted, falling back")
	}

	// A cancellation during the primary budget is not route exhaustion; do
	// not walk the fallbacks with a dead context.
	if winner == nil && ctx.Err() != nil {
		return model.Outcome{}, clierr.Wrap(clierr.CodeUnavailable, "swap cancelled", ctx.Err())
	}

	fallback := false
	if winner == nil {
		fallback = true
		for _, provider := range o.fallbacks {
			res := o.attempt(ctx, provider, req)
			if res.err == nil {
				winner = &res
				break
			}
			log.Warn().Err(res.err).Str("provider", provider.Name()).Msg("fallback tier failed")
		}
	}

	if winner == nil {
		outcome := model.Outcome{
			Status:        model.StatusFailed,
			CorrelationID: req.CorrelationID,
			InputMint:     req.Input.Mint.String(),
			OutputMint:    req.Output.Mint.String(),
			InAmount:      req.Amount,
			Fallback:      true,
			Err:           AllRoutesFailed,
		}
		o.recorder.RecordOutcome(outcome)
		log.Error().Msg(AllRoutesFailed)
		return outcome, nil
	}

	outcome := model.Outcome{
		Status:        model.StatusSuccess,
		CorrelationID: req.CorrelationID,
		InputMint:     req.Input.Mint.String(),
		OutputMint:    req.Output.Mint.String(),
		InAmount:      req.Amount,
		OutAmount:     winner.execution.OutAmount,
		Signature:     winner.execution.Signature,
		Route:         winner.quote.Route,
		Tier:          winner.provider,
		Fallback:      fallback,
	}
	o.recorder.RecordOutcome(outcome)
	o.balances.Invalidate()
	log.Info().
		Str("tier", outcome.Tier).
		Str("signature", outcome.Signature).
		Uint64("out", outcome.OutAmount).
		Bool("fallback", outcome.Fallback).
		Msg("swap committed")
	return outcome, nil
}

// preflight gates the request on native reserve and input balance before
// any provider is contacted.
func (o *Orchestrator) preflight(ctx context.Context, req model.SwapRequest) error {
	snap := o.balances.Snapshot(ctx)
	if snap.Native < o.minReserve {
		return clierr.New(clierr.CodePrecondition,
			fmt.Sprintf("insufficient SOL for fees: have %s, need %s",
				model.DisplaySOL(snap.Native), model.DisplaySOL(o.minReserve)))
	}
	if have := snap.Token(req.Input.Mint); have < req.Amount {
		return clierr.New(clierr.CodePrecondition,
			fmt.Sprintf("insufficient %s: have %s, need %s",
				req.Input.Symbol, req.Input.Display(have), req.Input.Display(req.Amount)))
	}
	return nil
}

func (o *Orchestrator) prepareAccounts(ctx context.Context, req model.SwapRequest) error {
	for _, asset := range []model.Asset{req.Input, req.Output} {
		if _, err := o.accounts.EnsureTokenAccount(ctx, asset); err != nil {
			return clierr.Wrap(clierr.CodePrecondition, "could not prepare accounts", err)
		}
	}
	return nil
}

type tierResult struct {
	provider  string
	quote     model.Quote
	execution model.Execution
	err       error
}

// attempt runs a full quote+execute against one provider and records the
// artifact regardless of how it went.
func (o *Orchestrator) attempt(ctx context.Context, provider providers.Provider, req model.SwapRequest) tierResult {
	res := tierResult{provider: provider.Name()}
	artifact := audit.Attempt{
		CorrelationID: req.CorrelationID,
		Provider:      provider.Name(),
		InputMint:     req.Input.Mint.String(),
		OutputMint:    req.Output.Mint.String(),
		InAmount:      req.Amount,
		At:            o.now(),
	}

	quote, err := provider.Quote(ctx, req)
	if err != nil {
		res.err = err
		artifact.Err = err.Error()
		o.recorder.RecordAttempt(artifact)
		return res
	}
	res.quote = quote
	artifact.Quote = &quote

	execution, err := provider.Execute(ctx, req, quote)
	if err != nil {
		res.err = err
		artifact.Err = err.Error()
		o.recorder.RecordAttempt(artifact)
		return res
	}
	res.execution = execution
	artifact.Signature = execution.Signature
	artifact.OutAmount = execution.OutAmount
	o.recorder.RecordAttempt(artifact)
	return res
}
