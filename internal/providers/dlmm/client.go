// Package dlmm implements the last-resort tier: swapping directly against
// the pinned concentrated-liquidity pool, bypassing aggregators entirely.
// The swap instruction is assembled by hand from the pool's on-chain state
// and simulated before any funds move.
package dlmm

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
	"github.com/OFiDCrypt/giddy-swaps/internal/registry"
)

const Name = "dlmm"

// Anchor method discriminator for the pool program's swap instruction.
var swapDiscriminator = [8]byte{0xf8, 0xc6, 0x9e, 0x91, 0xe1, 0x75, 0x87, 0xc8}

const (
	computeUnitLimit = 400_000
	computeUnitPrice = 10_000 // microlamports per unit
)

// Chain is the slice of the ledger client the direct-pool tier needs.
type Chain interface {
	AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Simulate(ctx context.Context, tx *solana.Transaction) error
	SubmitAndConfirm(ctx context.Context, tx *solana.Transaction) (string, error)
}

// Signer signs locally assembled transactions.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(tx *solana.Transaction) error
}

type Client struct {
	chain       Chain
	signer      Signer
	pool        registry.DLMMPool
	slippageBps int
	log         zerolog.Logger
}

func New(chain Chain, signer Signer, pool registry.DLMMPool, slippageBps int, log zerolog.Logger) *Client {
	return &Client{
		chain:       chain,
		signer:      signer,
		pool:        pool,
		slippageBps: slippageBps,
		log:         log.With().Str("provider", Name).Logger(),
	}
}

func (c *Client) Name() string { return Name }

// Quote reads the pool's active bin and derives the expected output from the
// bin price. This is a spot estimate, not a routed quote: crossing bins eats
// into it, which is what the slippage floor is for.
func (c *Client) Quote(ctx context.Context, req model.SwapRequest) (model.Quote, error) {
	pair, err := c.loadPair(ctx, req)
	if err != nil {
		return model.Quote{}, err
	}

	price := pair.price()
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return model.Quote{}, clierr.New(clierr.CodeUnavailable, "pool price out of range")
	}

	var out float64
	if req.Input.Mint == c.pool.TokenXMint {
		out = float64(req.Amount) * price
	} else {
		out = float64(req.Amount) / price
	}
	if out < 1 {
		return model.Quote{}, clierr.New(clierr.CodeUnavailable, "pool quote rounds to zero")
	}

	outAmount := uint64(out)
	minOut := applySlippage(outAmount, c.slippageBps)
	c.log.Debug().
		Int32("active_bin", pair.ActiveID).
		Float64("price", price).
		Uint64("out", outAmount).
		Msg("pool quoted")

	return model.Quote{
		Provider:     Name,
		InAmount:     req.Amount,
		OutAmount:    outAmount,
		MinOutAmount: minOut,
		Route:        "direct-pool",
	}, nil
}

// Execute assembles the swap transaction, simulates it, then signs and
// submits. A failed simulation aborts before anything reaches the chain.
func (c *Client) Execute(ctx context.Context, req model.SwapRequest, quote model.Quote) (model.Execution, error) {
	pair, err := c.loadPair(ctx, req)
	if err != nil {
		return model.Execution{}, err
	}

	tx, err := c.buildSwap(ctx, req, quote, pair)
	if err != nil {
		return model.Execution{}, err
	}
	if err := c.signer.Sign(tx); err != nil {
		return model.Execution{}, err
	}
	if err := c.chain.Simulate(ctx, tx); err != nil {
		return model.Execution{}, err
	}

	sig, err := c.chain.SubmitAndConfirm(ctx, tx)
	if err != nil {
		return model.Execution{}, err
	}
	return model.Execution{Signature: sig, OutAmount: quote.OutAmount}, nil
}

// loadPair fetches and validates pool state against the request pair.
func (c *Client) loadPair(ctx context.Context, req model.SwapRequest) (lbPair, error) {
	data, err := c.chain.AccountData(ctx, c.pool.Pool)
	if err != nil {
		return lbPair{}, err
	}
	if data == nil {
		return lbPair{}, clierr.New(clierr.CodeUnavailable, "pool account not found")
	}
	pair, err := parseLbPair(data)
	if err != nil {
		return lbPair{}, err
	}
	if !pairMatches(pair, req) {
		return lbPair{}, clierr.New(clierr.CodePrecondition,
			fmt.Sprintf("pool pair mismatch: pool holds %s/%s", pair.TokenXMint, pair.TokenYMint))
	}
	return pair, nil
}

func pairMatches(pair lbPair, req model.SwapRequest) bool {
	forward := pair.TokenXMint == req.Input.Mint && pair.TokenYMint == req.Output.Mint
	reverse := pair.TokenXMint == req.Output.Mint && pair.TokenYMint == req.Input.Mint
	return forward || reverse
}

func (c *Client) buildSwap(ctx context.Context, req model.SwapRequest, quote model.Quote, pair lbPair) (*solana.Transaction, error) {
	owner := c.signer.PublicKey()

	userIn, err := registry.AssociatedTokenAddress(owner, req.Input)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "derive input account", err)
	}
	userOut, err := registry.AssociatedTokenAddress(owner, req.Output)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "derive output account", err)
	}
	eventAuthority, err := eventAuthorityAddress(c.pool.Program)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "derive event authority", err)
	}

	// The active bin array plus its neighbors cover the price range a
	// single swap can sweep.
	center := binArrayIndex(pair.ActiveID)
	binArrays := make([]solana.PublicKey, 0, 3)
	for _, idx := range []int64{center - 1, center, center + 1} {
		addr, err := binArrayAddress(c.pool.Program, c.pool.Pool, idx)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "derive bin array", err)
		}
		binArrays = append(binArrays, addr)
	}

	xAsset, yAsset := req.Input, req.Output
	if req.Input.Mint != pair.TokenXMint {
		xAsset, yAsset = req.Output, req.Input
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(c.pool.Pool, true, false),
		solana.NewAccountMeta(c.pool.BinArrayBitmap, false, false),
		solana.NewAccountMeta(pair.ReserveX, true, false),
		solana.NewAccountMeta(pair.ReserveY, true, false),
		solana.NewAccountMeta(userIn, true, false),
		solana.NewAccountMeta(userOut, true, false),
		solana.NewAccountMeta(pair.TokenXMint, false, false),
		solana.NewAccountMeta(pair.TokenYMint, false, false),
		solana.NewAccountMeta(pair.Oracle, true, false),
		solana.NewAccountMeta(c.pool.Program, false, false), // no host fee account
		solana.NewAccountMeta(owner, false, true),
		solana.NewAccountMeta(xAsset.TokenProgram, false, false),
		solana.NewAccountMeta(yAsset.TokenProgram, false, false),
		solana.NewAccountMeta(eventAuthority, false, false),
		solana.NewAccountMeta(c.pool.Program, false, false),
	}
	for _, addr := range binArrays {
		accounts = append(accounts, solana.NewAccountMeta(addr, true, false))
	}

	data := make([]byte, 0, 24)
	data = append(data, swapDiscriminator[:]...)
	data = binary.LittleEndian.AppendUint64(data, req.Amount)
	data = binary.LittleEndian.AppendUint64(data, quote.MinOutAmount)

	swapIx := solana.NewInstruction(c.pool.Program, accounts, data)

	blockhash, err := c.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			computeUnitLimitIx(computeUnitLimit),
			computeUnitPriceIx(computeUnitPrice),
			swapIx,
		},
		blockhash,
		solana.TransactionPayer(owner),
	)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build swap transaction", err)
	}
	return tx, nil
}

func computeUnitLimitIx(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:], units)
	return solana.NewInstruction(registry.ComputeBudgetProgram, solana.AccountMetaSlice{}, data)
}

func computeUnitPriceIx(microLamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return solana.NewInstruction(registry.ComputeBudgetProgram, solana.AccountMetaSlice{}, data)
}

func applySlippage(amount uint64, bps int) uint64 {
	return amount - amount*uint64(bps)/10_000
}
