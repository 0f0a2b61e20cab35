// Package session runs the alternating buy/sell loop. The controller owns
// all loop state explicitly: current phase, the tracked output delta from
// the last buy, and the accumulated round records persisted when the loop
// stops.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/OFiDCrypt/giddy-swaps/internal/audit"
	"github.com/OFiDCrypt/giddy-swaps/internal/backoff"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
	"github.com/OFiDCrypt/giddy-swaps/internal/registry"
)

// Swapper drives one swap request through the fallback cascade.
type Swapper interface {
	Swap(ctx context.Context, req model.SwapRequest) (model.Outcome, error)
}

// BalanceSource is the oracle slice the loop reads between rounds.
type BalanceSource interface {
	Snapshot(ctx context.Context) model.Snapshot
	Invalidate()
}

// SessionRecorder persists the session log when the loop stops.
type SessionRecorder interface {
	RecordSession(session audit.SessionLog)
}

// Reporter receives human-facing loop events. The Telegram driver implements
// it; a no-op implementation serves headless runs.
type Reporter interface {
	RoundCompleted(rec model.RoundRecord, outcome model.Outcome)
	RoundSkipped(phase model.Phase, reason string)
	SessionStopped(reason string)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) RoundCompleted(model.RoundRecord, model.Outcome) {}
func (NopReporter) RoundSkipped(model.Phase, string)                {}
func (NopReporter) SessionStopped(string)                           {}

type Config struct {
	MinReserveLamports uint64
	MinSwap            uint64 // USDC base units
	MaxBuy             uint64 // USDC base units
	Interval           time.Duration
	SkipDelay          time.Duration
	RetryDelay         time.Duration
	RoundRetries       int
	WaitAttempts       int
	WaitDelay          time.Duration
	InitialPhase       model.Phase
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.SkipDelay <= 0 {
		c.SkipDelay = 10 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.RoundRetries <= 0 {
		c.RoundRetries = 3
	}
	if c.WaitAttempts <= 0 {
		c.WaitAttempts = 5
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = 4 * time.Second
	}
	if c.InitialPhase == "" {
		c.InitialPhase = model.PhaseBuy
	}
}

type Controller struct {
	swapper  Swapper
	balances BalanceSource
	recorder SessionRecorder
	reporter Reporter
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	phase        model.Phase
	trackedDelta uint64 // GIDDY base units bought and not yet sold
	lastSellOut  uint64 // USDC received by the most recent sell
	round        int
	rounds       []model.RoundRecord
	startedAt    time.Time
}

func New(swapper Swapper, balances BalanceSource, recorder SessionRecorder, reporter Reporter, cfg Config, log zerolog.Logger) *Controller {
	cfg.applyDefaults()
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Controller{
		swapper:  swapper,
		balances: balances,
		recorder: recorder,
		reporter: reporter,
		cfg:      cfg,
		log:      log.With().Str("component", "session").Logger(),
		now:      time.Now,
	}
}

// Running reports whether a loop is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start launches the loop in a goroutine. Starting an already-running
// session is an error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("session already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.Run(loopCtx)
	}()
	return nil
}

// Stop requests the loop to end and blocks until it has. The request takes
// effect at the next round boundary; a swap in flight completes first.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Run executes the loop until the context ends or a stop condition fires.
// It blocks; Start wraps it in a goroutine.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	c.phase = c.cfg.InitialPhase
	c.trackedDelta = 0
	c.lastSellOut = 0
	c.round = 0
	c.rounds = nil
	c.startedAt = c.now()

	reason := c.loop(ctx)

	c.recorder.RecordSession(audit.SessionLog{
		StartedAt:  c.startedAt,
		StoppedAt:  c.now(),
		StopReason: reason,
		Rounds:     c.rounds,
	})
	c.reporter.SessionStopped(reason)
	c.log.Info().Str("reason", reason).Int("rounds", len(c.rounds)).Msg("session stopped")

	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
}

func (c *Controller) loop(ctx context.Context) string {
	for {
		if ctx.Err() != nil {
			return "stop requested"
		}

		// Every round starts from fresh balances, never the cache.
		c.balances.Invalidate()
		snap := c.balances.Snapshot(ctx)

		if snap.Native < c.cfg.MinReserveLamports {
			return fmt.Sprintf("SOL below reserve (%s)", model.DisplaySOL(snap.Native))
		}

		amount, skipReason := c.roundAmount(snap)
		if skipReason != "" {
			c.log.Info().Str("phase", string(c.phase)).Str("reason", skipReason).Msg("round skipped")
			c.reporter.RoundSkipped(c.phase, skipReason)
			c.phase = c.phase.Flip()
			if err := backoff.Sleep(ctx, c.cfg.SkipDelay); err != nil {
				return "stop requested"
			}
			continue
		}

		if fatal := c.executeRound(ctx, amount, snap); fatal != "" {
			return fatal
		}

		if err := backoff.Sleep(ctx, c.cfg.Interval); err != nil {
			return "stop requested"
		}
	}
}

// roundAmount applies the phase gate and returns the input amount in base
// units, or a skip reason.
func (c *Controller) roundAmount(snap model.Snapshot) (uint64, string) {
	switch c.phase {
	case model.PhaseBuy:
		usdc := snap.Token(registry.USDC.Mint)
		if usdc < c.cfg.MinSwap {
			return 0, fmt.Sprintf("USDC %s below minimum %s",
				registry.USDC.Display(usdc), registry.USDC.Display(c.cfg.MinSwap))
		}
		amount := usdc
		if c.lastSellOut > 0 && c.lastSellOut < amount {
			amount = c.lastSellOut
		}
		if c.cfg.MaxBuy > 0 && c.cfg.MaxBuy < amount {
			amount = c.cfg.MaxBuy
		}
		return amount, ""
	default:
		if c.trackedDelta == 0 {
			return 0, "nothing tracked to sell"
		}
		giddy := snap.Token(registry.GIDDY.Mint)
		if giddy < c.trackedDelta {
			return 0, fmt.Sprintf("GIDDY %s below tracked %s",
				registry.GIDDY.Display(giddy), registry.GIDDY.Display(c.trackedDelta))
		}
		return c.trackedDelta, ""
	}
}

// executeRound runs one swap with the round retry budget. A non-empty
// return is a stop reason that ends the loop.
func (c *Controller) executeRound(ctx context.Context, amount uint64, before model.Snapshot) string {
	input, output := registry.USDC, registry.GIDDY
	if c.phase == model.PhaseSell {
		input, output = registry.GIDDY, registry.USDC
	}
	req := model.SwapRequest{Input: input, Output: output, Amount: amount}

	var outcome model.Outcome
	for attempt := 1; ; attempt++ {
		var err error
		outcome, err = c.swapper.Swap(ctx, req)
		if err != nil {
			// Precondition failures do not improve with retries.
			return fmt.Sprintf("swap aborted: %v", err)
		}
		if outcome.Committed() {
			break
		}
		if attempt >= c.cfg.RoundRetries {
			return fmt.Sprintf("round failed after %d attempts: %s", attempt, outcome.Err)
		}
		c.log.Warn().Int("attempt", attempt).Str("error", outcome.Err).Msg("round failed, retrying")
		if err := backoff.Sleep(ctx, c.cfg.RetryDelay); err != nil {
			return "stop requested"
		}
	}

	outAmount, estimated := c.settledOutput(ctx, output, before.Token(output.Mint), outcome.OutAmount)
	if estimated {
		c.log.Warn().
			Str("phase", string(c.phase)).
			Uint64("quoted", outcome.OutAmount).
			Msg("balance change not observed, using quoted output")
	}

	if c.phase == model.PhaseBuy {
		c.trackedDelta = outAmount
	} else {
		c.trackedDelta = 0
		c.lastSellOut = outAmount
	}

	c.round++
	rec := model.RoundRecord{
		Round:     c.round,
		Direction: c.phase,
		AmountIn:  input.Display(amount),
		AmountOut: output.Display(outAmount),
		Loss:      input.SignedDelta(amount, outAmount),
		Signature: outcome.Signature,
		Estimated: estimated,
	}
	c.rounds = append(c.rounds, rec)
	c.reporter.RoundCompleted(rec, outcome)
	c.log.Info().
		Int("round", rec.Round).
		Str("direction", string(rec.Direction)).
		Str("in", rec.AmountIn).
		Str("out", rec.AmountOut).
		Bool("estimated", rec.Estimated).
		Msg("round completed")

	c.phase = c.phase.Flip()
	return ""
}

// settledOutput polls for a visible balance increase on the output side.
// When the chain never shows the credit within the poll budget, the quoted
// amount stands in and the round is flagged estimated.
func (c *Controller) settledOutput(ctx context.Context, output model.Asset, before, quoted uint64) (uint64, bool) {
	for attempt := 0; attempt < c.cfg.WaitAttempts; attempt++ {
		c.balances.Invalidate()
		snap := c.balances.Snapshot(ctx)
		if now := snap.Token(output.Mint); now > before {
			return now - before, false
		}
		if err := backoff.Sleep(ctx, c.cfg.WaitDelay); err != nil {
			break
		}
	}
	return quoted, true
}
