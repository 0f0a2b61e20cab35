// Package ledger wraps the Solana JSON-RPC client behind the narrow surface
// the rest of the bot needs: balance reads, account preparation, transaction
// submission, and confirmation polling.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/OFiDCrypt/giddy-swaps/internal/backoff"
	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
	"github.com/OFiDCrypt/giddy-swaps/internal/registry"
)

// Signer produces signatures for transactions built or relayed by the client.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(tx *solana.Transaction) error
}

type Client struct {
	rpc            *rpc.Client
	signer         Signer
	log            zerolog.Logger
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

type Options struct {
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func New(url string, signer Signer, log zerolog.Logger, opts Options) *Client {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Client{
		rpc:            rpc.New(url),
		signer:         signer,
		log:            log.With().Str("component", "ledger").Logger(),
		confirmTimeout: opts.ConfirmTimeout,
		pollInterval:   opts.PollInterval,
	}
}

func (c *Client) Owner() solana.PublicKey {
	return c.signer.PublicKey()
}

// NativeBalance returns the owner's lamport balance.
func (c *Client) NativeBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, classify("get balance", err)
	}
	return out.Value, nil
}

// TokenAccountByOwner finds the owner's token account for mint. The second
// return is false when no account exists yet.
func (c *Client) TokenAccountByOwner(ctx context.Context, owner, mint solana.PublicKey) (solana.PublicKey, bool, error) {
	out, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{Mint: &mint},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed, Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return solana.PublicKey{}, false, classify("get token accounts", err)
	}
	if len(out.Value) == 0 {
		return solana.PublicKey{}, false, nil
	}
	return out.Value[0].Pubkey, true, nil
}

// TokenAccountBalance returns the base-unit balance held by a token account.
func (c *Client) TokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, classify("get token balance", err)
	}
	if out.Value == nil {
		return 0, clierr.New(clierr.CodeUnavailable, "token balance response empty")
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeInternal, "parse token balance", err)
	}
	return amount, nil
}

// EnsureTokenAccount guarantees the owner's associated token account for
// asset exists, creating it idempotently when missing. Creation is retried
// with exponential backoff; a wallet that cannot hold the output asset is a
// hard precondition failure.
func (c *Client) EnsureTokenAccount(ctx context.Context, asset model.Asset) (solana.PublicKey, error) {
	owner := c.signer.PublicKey()
	ata, err := registry.AssociatedTokenAddress(owner, asset)
	if err != nil {
		return solana.PublicKey{}, clierr.Wrap(clierr.CodeInternal, "derive associated account", err)
	}

	info, err := c.accountInfo(ctx, ata)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if info != nil {
		return ata, nil
	}

	c.log.Info().Str("mint", asset.Mint.String()).Str("account", ata.String()).Msg("creating associated token account")

	policy := backoff.Exponential(3, time.Second)
	err = policy.Retry(ctx, func(ctx context.Context) error {
		return c.createAssociatedAccount(ctx, owner, ata, asset)
	})
	if err != nil {
		return solana.PublicKey{}, clierr.Wrap(clierr.CodePrecondition,
			fmt.Sprintf("prepare %s token account", asset.Symbol), err)
	}
	return ata, nil
}

func (c *Client) createAssociatedAccount(ctx context.Context, owner, ata solana.PublicKey, asset model.Asset) error {
	// CreateIdempotent: succeeds whether or not the account already exists.
	ix := solana.NewInstruction(
		registry.AssociatedTokenProg,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(owner, true, true),
			solana.NewAccountMeta(ata, true, false),
			solana.NewAccountMeta(owner, false, false),
			solana.NewAccountMeta(asset.Mint, false, false),
			solana.NewAccountMeta(registry.SystemProgram, false, false),
			solana.NewAccountMeta(asset.TokenProgram, false, false),
		},
		[]byte{1},
	)

	blockhash, err := c.LatestBlockhash(ctx)
	if err != nil {
		return err
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(owner),
	)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "build account transaction", err)
	}
	if err := c.signer.Sign(tx); err != nil {
		return err
	}
	_, err = c.SubmitAndConfirm(ctx, tx)
	return err
}

// LatestBlockhash fetches a recent blockhash for transaction assembly.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, classify("get blockhash", err)
	}
	return out.Value.Blockhash, nil
}

// AccountData returns an account's raw bytes, or a nil slice when the
// account does not exist.
func (c *Client) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	info, err := c.accountInfo(ctx, account)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return info.Data.GetBinary(), nil
}

func (c *Client) accountInfo(ctx context.Context, account solana.PublicKey) (*rpc.Account, error) {
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, classify("get account info", err)
	}
	if out == nil || out.Value == nil {
		return nil, nil
	}
	return out.Value, nil
}

// Simulate runs the transaction against current state without committing.
// Program logs ride along in the error so failures are diagnosable.
func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction) error {
	out, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return classify("simulate transaction", err)
	}
	if out.Value != nil && out.Value.Err != nil {
		tail := out.Value.Logs
		if len(tail) > 8 {
			tail = tail[len(tail)-8:]
		}
		return clierr.New(clierr.CodeSimulation,
			fmt.Sprintf("simulation failed: %v; logs: %s", out.Value.Err, strings.Join(tail, " | ")))
	}
	return nil
}

// SubmitAndConfirm sends a signed transaction and blocks until it reaches
// confirmed commitment or the confirm timeout lapses.
func (c *Client) SubmitAndConfirm(ctx context.Context, tx *solana.Transaction) (string, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", classify("send transaction", err)
	}
	if err := c.Confirm(ctx, sig); err != nil {
		return sig.String(), err
	}
	return sig.String(), nil
}

// SubmitRawBase64 sends an already-signed, base64-encoded transaction and
// waits for confirmation.
func (c *Client) SubmitRawBase64(ctx context.Context, encoded string) (string, error) {
	sig, err := c.rpc.SendEncodedTransactionWithOpts(ctx, encoded, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", classify("send transaction", err)
	}
	if err := c.Confirm(ctx, sig); err != nil {
		return sig.String(), err
	}
	return sig.String(), nil
}

// Confirm polls signature status until the transaction is confirmed,
// finalized, or the timeout lapses. An on-chain error surfaces as a typed
// failure, not a timeout.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return clierr.New(clierr.CodeUnavailable,
					fmt.Sprintf("transaction %s failed on chain: %v", sig, status.Err))
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				c.log.Debug().Str("signature", sig.String()).Msg("transaction confirmed")
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return clierr.New(clierr.CodeUnavailable,
				fmt.Sprintf("transaction %s not confirmed within %s", sig, c.confirmTimeout))
		case <-ticker.C:
		}
	}
}

// classify maps transport failures onto typed error codes. The RPC endpoint
// signals throttling with HTTP 429, which retriable callers treat
// differently from a generic outage.
func classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") {
		return clierr.Wrap(clierr.CodeRateLimited, op, err)
	}
	return clierr.Wrap(clierr.CodeUnavailable, op, err)
}
