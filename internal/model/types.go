package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Asset identifies a fungible token: its mint, decimal precision, and the
// token program that owns its accounts. Assets are defined at process start
// and never change.
type Asset struct {
	Symbol       string
	Mint         solana.PublicKey
	Decimals     uint8
	TokenProgram solana.PublicKey
}

// Snapshot is a wholesale capture of the wallet's tracked balances in base
// units, plus the native balance in lamports. A snapshot is replaced, never
// patched.
type Snapshot struct {
	Tokens     map[string]uint64
	Native     uint64
	CapturedAt time.Time
}

// Token returns the captured base-unit balance for a mint, zero when the
// mint is not tracked.
func (s Snapshot) Token(mint solana.PublicKey) uint64 {
	return s.Tokens[mint.String()]
}

// SwapRequest is an immutable request to exchange Amount base units of Input
// for Output. CorrelationID ties together every artifact produced while
// serving the request, including fallback sub-attempts.
type SwapRequest struct {
	Input         Asset
	Output        Asset
	Amount        uint64
	CorrelationID string
}

// NewCorrelationID derives a filesystem-safe identifier from a timestamp,
// e.g. 2026-08-29T10-15-04-123Z.
func NewCorrelationID(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000Z")
	s = strings.ReplaceAll(s, ":", "-")
	return strings.ReplaceAll(s, ".", "-")
}

// Quote is the normalized form every route provider translates its own
// response shape into. Downstream logic never branches on provider identity;
// provider-opaque execution material rides along in RequestID, Transaction,
// and Payload.
type Quote struct {
	Provider     string          `json:"provider"`
	InAmount     uint64          `json:"in_amount"`
	OutAmount    uint64          `json:"out_amount"`
	MinOutAmount uint64          `json:"min_out_amount,omitempty"`
	Route        string          `json:"route"`
	RequestID    string          `json:"request_id,omitempty"`
	Transaction  string          `json:"-"`
	Payload      json.RawMessage `json:"-"`
}

// Execution is the normalized result of submitting a quote: a transaction
// signature and the output amount credited (quoted when the provider does
// not report a settled amount).
type Execution struct {
	Signature string `json:"signature"`
	OutAmount uint64 `json:"out_amount"`
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Outcome is produced exactly once per SwapRequest and never mutated. Tier
// names which fallback stage satisfied the request.
type Outcome struct {
	Status        Status `json:"status"`
	CorrelationID string `json:"correlation_id"`
	InputMint     string `json:"input_mint"`
	OutputMint    string `json:"output_mint"`
	InAmount      uint64 `json:"in_amount"`
	OutAmount     uint64 `json:"out_amount,omitempty"`
	Signature     string `json:"signature,omitempty"`
	Route         string `json:"route,omitempty"`
	Tier          string `json:"tier,omitempty"`
	Fallback      bool   `json:"fallback"`
	Err           string `json:"error,omitempty"`
}

// Committed reports whether the outcome carries a transaction signature.
func (o Outcome) Committed() bool {
	return o.Status == StatusSuccess && o.Signature != ""
}

// Phase is the session loop's current direction.
type Phase string

const (
	PhaseBuy  Phase = "buy"
	PhaseSell Phase = "sell"
)

// Flip returns the opposite phase.
func (p Phase) Flip() Phase {
	if p == PhaseBuy {
		return PhaseSell
	}
	return PhaseBuy
}

// RoundRecord is one entry of the session log. Amounts are decimal display
// strings; Estimated marks rounds whose output amount fell back to the
// quoted value because the balance change was never observed.
type RoundRecord struct {
	Round     int    `json:"round"`
	Direction Phase  `json:"direction"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	Loss      string `json:"loss"`
	Signature string `json:"txid"`
	Estimated bool   `json:"estimated,omitempty"`
}
