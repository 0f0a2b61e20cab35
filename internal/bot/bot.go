// Package bot is the Telegram control surface: a long-poll driver that
// translates chat commands into calls on the core API and renders outcomes
// back as messages. It holds no swap logic of its own.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/OFiDCrypt/giddy-swaps/internal/httpx"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
	"github.com/OFiDCrypt/giddy-swaps/internal/registry"
)

// Balances reads the cached wallet snapshot.
type Balances interface {
	Snapshot(ctx context.Context) model.Snapshot
}

// Swapper runs one manual swap through the fallback cascade.
type Swapper interface {
	Swap(ctx context.Context, req model.SwapRequest) (model.Outcome, error)
}

// Session controls the buy/sell loop.
type Session interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
}

// History lists recent terminal outcomes.
type History interface {
	List(limit int) ([]model.Outcome, error)
}

type Config struct {
	BotToken string
	ChatID   int64
	APIBase  string
}

type Bot struct {
	cfg      Config
	http     *httpx.Client
	poll     *httpx.Client
	balances Balances
	swapper  Swapper
	session  Session
	history  History
	log      zerolog.Logger
}

func New(cfg Config, balances Balances, swapper Swapper, session Session, history History, log zerolog.Logger) *Bot {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.telegram.org"
	}
	return &Bot{
		cfg:      cfg,
		http:     httpx.New(30*time.Second, 2),
		poll:     httpx.New(40*time.Second, 0),
		balances: balances,
		swapper:  swapper,
		session:  session,
		history:  history,
		log:      log.With().Str("component", "bot").Logger(),
	}
}

// BindSession attaches the session controller after construction. The bot
// reports session events and the session needs the bot as its reporter, so
// one side binds late.
func (b *Bot) BindSession(s Session) {
	b.session = s
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// Run long-polls for updates until ctx ends. Commands from chats other than
// the configured one are dropped.
func (b *Bot) Run(ctx context.Context) {
	b.log.Info().Msg("telegram driver started")
	var offset int64
	for {
		if ctx.Err() != nil {
			b.log.Info().Msg("telegram driver stopped")
			return
		}

		url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=30", b.cfg.APIBase, b.cfg.BotToken, offset)
		var resp updatesResponse
		if err := b.poll.GetJSON(ctx, url, &resp); err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.Warn().Err(err).Msg("poll failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range resp.Result {
			offset = u.UpdateID + 1
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			if u.Message.Chat.ID != b.cfg.ChatID {
				continue
			}
			text := strings.TrimSpace(u.Message.Text)
			b.log.Info().Str("command", text).Msg("command received")
			if reply := b.handle(ctx, text); reply != "" {
				b.send(reply)
			}
		}
	}
}

func (b *Bot) handle(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToLower(strings.TrimSuffix(fields[0], "@giddy_swap_bot"))

	switch cmd {
	case "/balance", "/balances":
		return b.renderBalances(ctx)
	case "/swap":
		if len(fields) < 2 {
			return "Usage: /swap <USDC amount>"
		}
		return b.manualSwap(ctx, fields[1])
	case "/start":
		if b.session.Running() {
			return "Session already running."
		}
		if err := b.session.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Sprintf("Could not start session: %v", err)
		}
		return "Session started. Alternating buy/sell rounds are live."
	case "/stop":
		if !b.session.Running() {
			return "No session running."
		}
		b.session.Stop()
		return "Stop requested. The session ends at the current round boundary."
	case "/history":
		return b.renderHistory()
	case "/help":
		return "Commands: /balance, /swap <amount>, /start, /stop, /history"
	default:
		return ""
	}
}

func (b *Bot) renderBalances(ctx context.Context) string {
	snap := b.balances.Snapshot(ctx)
	return fmt.Sprintf("Balances:\nUSDC: %s\nGIDDY: %s\nSOL: %s",
		registry.USDC.Display(snap.Token(registry.USDC.Mint)),
		registry.GIDDY.Display(snap.Token(registry.GIDDY.Mint)),
		model.DisplaySOL(snap.Native))
}

func (b *Bot) manualSwap(ctx context.Context, amountText string) string {
	amount, err := registry.USDC.BaseUnits(amountText)
	if err != nil || amount == 0 {
		return fmt.Sprintf("Invalid amount %q. Usage: /swap <USDC amount>", amountText)
	}

	b.send(fmt.Sprintf("Manual swap triggered: %s USDC -> GIDDY", registry.USDC.Display(amount)))
	outcome, err := b.swapper.Swap(ctx, model.SwapRequest{
		Input:  registry.USDC,
		Output: registry.GIDDY,
		Amount: amount,
	})
	if err != nil {
		return fmt.Sprintf("Swap aborted: %v", err)
	}
	return renderOutcome(outcome)
}

func (b *Bot) renderHistory() string {
	outcomes, err := b.history.List(5)
	if err != nil {
		return fmt.Sprintf("Could not read history: %v", err)
	}
	if len(outcomes) == 0 {
		return "No swaps recorded yet."
	}
	var sb strings.Builder
	sb.WriteString("Recent swaps:\n")
	for _, o := range outcomes {
		if !o.Committed() {
			sb.WriteString(fmt.Sprintf("- %s failed: %s\n", o.CorrelationID, o.Err))
			continue
		}
		line := fmt.Sprintf("- %s via %s", o.CorrelationID, o.Tier)
		if mint, err := solana.PublicKeyFromBase58(o.OutputMint); err == nil {
			if asset, ok := registry.AssetByMint(mint); ok {
				line += fmt.Sprintf(": %s %s out", asset.Display(o.OutAmount), asset.Symbol)
			}
		}
		sb.WriteString(line + "\n  " + solscanTx(o.Signature) + "\n")
	}
	return sb.String()
}

// RoundCompleted implements session.Reporter.
func (b *Bot) RoundCompleted(rec model.RoundRecord, outcome model.Outcome) {
	note := ""
	if rec.Estimated {
		note = " (output estimated from quote)"
	}
	tier := ""
	if outcome.Fallback {
		tier = fmt.Sprintf(" via fallback %s", outcome.Tier)
	}
	b.send(fmt.Sprintf("Round %d %s%s: %s in, %s out%s\n%s",
		rec.Round, rec.Direction, tier, rec.AmountIn, rec.AmountOut, note, solscanTx(rec.Signature)))
}

// RoundSkipped implements session.Reporter.
func (b *Bot) RoundSkipped(phase model.Phase, reason string) {
	b.send(fmt.Sprintf("Round skipped (%s): %s", phase, reason))
}

// SessionStopped implements session.Reporter.
func (b *Bot) SessionStopped(reason string) {
	b.send(fmt.Sprintf("Session stopped: %s", reason))
}

func (b *Bot) send(text string) {
	url := fmt.Sprintf("%s/bot%s/sendMessage", b.cfg.APIBase, b.cfg.BotToken)
	payload := map[string]any{
		"chat_id":                  b.cfg.ChatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if err := b.http.PostJSON(context.Background(), url, payload, nil); err != nil {
		b.log.Warn().Err(err).Msg("send failed")
	}
}

func solscanTx(signature string) string {
	if signature == "" {
		return ""
	}
	return "https://solscan.io/tx/" + signature
}

func renderOutcome(outcome model.Outcome) string {
	if !outcome.Committed() {
		return fmt.Sprintf("Swap failed: %s", outcome.Err)
	}
	tier := outcome.Tier
	if outcome.Fallback {
		tier += " (fallback)"
	}
	return fmt.Sprintf("Swap submitted via %s.\nTxid: %s\n%s",
		tier, outcome.Signature, solscanTx(outcome.Signature))
}
