// Package jupiter implements the secondary tier: the aggregator's raw
// quote/swap API. Unlike the managed order flow, the bot polls for a usable
// quote, asks for a transaction build, signs it, and submits it itself.
package jupiter

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/OFiDCrypt/giddy-swaps/internal/backoff"
	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
	"github.com/OFiDCrypt/giddy-swaps/internal/httpx"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
)

const Name = "jupiter"

// Engine signs an unsigned base64 transaction, submits it, and waits for
// confirmation.
type Engine interface {
	SubmitAndConfirm(ctx context.Context, encoded string) (string, error)
}

type Client struct {
	http        *httpx.Client
	baseURL     string
	engine      Engine
	user        string
	slippageBps int
	quotePolicy backoff.Policy
	log         zerolog.Logger
}

func New(http *httpx.Client, baseURL string, engine Engine, user string, slippageBps int, log zerolog.Logger) *Client {
	return &Client{
		http:        http,
		baseURL:     strings.TrimRight(baseURL, "/"),
		engine:      engine,
		user:        user,
		slippageBps: slippageBps,
		quotePolicy: backoff.Fixed(5, 500*time.Millisecond),
		log:         log.With().Str("provider", Name).Logger(),
	}
}

func (c *Client) Name() string { return Name }

type quoteResponse struct {
	InAmount  string `json:"inAmount"`
	OutAmount string `json:"outAmount"`
	Threshold string `json:"otherAmountThreshold"`
	RoutePlan []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
	ErrorMessage string `json:"error"`
}

// Quote polls the quote endpoint until it yields a routable quote or the
// poll budget runs out. The raw response body is retained because the swap
// build endpoint wants it back verbatim.
func (c *Client) Quote(ctx context.Context, req model.SwapRequest) (model.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.Input.Mint.String())
	q.Set("outputMint", req.Output.Mint.String())
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(c.slippageBps))
	q.Set("swapMode", "ExactIn")
	endpoint := c.baseURL + "/quote?" + q.Encode()

	var quote model.Quote
	err := c.quotePolicy.Retry(ctx, func(ctx context.Context) error {
		var raw json.RawMessage
		if err := c.http.GetJSON(ctx, endpoint, &raw); err != nil {
			return err
		}
		var resp quoteResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return clierr.Wrap(clierr.CodeUnavailable, "decode quote", err)
		}
		if resp.ErrorMessage != "" {
			return clierr.New(clierr.CodeUnavailable, "quote rejected: "+resp.ErrorMessage)
		}
		outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
		if err != nil || outAmount == 0 {
			return clierr.New(clierr.CodeUnavailable, "quote carried no output amount")
		}
		inAmount, _ := strconv.ParseUint(resp.InAmount, 10, 64)
		if inAmount == 0 {
			inAmount = req.Amount
		}
		minOut, _ := strconv.ParseUint(resp.Threshold, 10, 64)

		quote = model.Quote{
			Provider:     Name,
			InAmount:     inAmount,
			OutAmount:    outAmount,
			MinOutAmount: minOut,
			Route:        routeLabel(resp),
			Payload:      raw,
		}
		return nil
	})
	if err != nil {
		return model.Quote{}, err
	}
	c.log.Debug().
		Uint64("in", quote.InAmount).
		Uint64("out", quote.OutAmount).
		Str("route", quote.Route).
		Msg("quote obtained")
	return quote, nil
}

type swapRequest struct {
	QuoteResponse           json.RawMessage `json:"quoteResponse"`
	UserPublicKey           string          `json:"userPublicKey"`
	WrapAndUnwrapSol        bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit bool            `json:"dynamicComputeUnitLimit"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	ErrorMessage    string `json:"error"`
}

// Execute asks the aggregator to build a transaction from the retained
// quote, signs it locally, and submits it through the ledger. The settled
// amount is not reported on this path, so the quoted output stands in.
func (c *Client) Execute(ctx context.Context, req model.SwapRequest, quote model.Quote) (model.Execution, error) {
	if len(quote.Payload) == 0 {
		return model.Execution{}, clierr.New(clierr.CodeInternal, "quote payload missing")
	}

	var resp swapResponse
	err := c.http.PostJSON(ctx, c.baseURL+"/swap", swapRequest{
		QuoteResponse:           quote.Payload,
		UserPublicKey:           c.user,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
	}, &resp)
	if err != nil {
		return model.Execution{}, err
	}
	if resp.ErrorMessage != "" {
		return model.Execution{}, clierr.New(clierr.CodeUnavailable, "swap build rejected: "+resp.ErrorMessage)
	}
	if resp.SwapTransaction == "" {
		return model.Execution{}, clierr.New(clierr.CodeUnavailable, "swap build returned no transaction")
	}

	sig, err := c.engine.SubmitAndConfirm(ctx, resp.SwapTransaction)
	if err != nil {
		return model.Execution{}, err
	}
	return model.Execution{Signature: sig, OutAmount: quote.OutAmount}, nil
}

func routeLabel(resp quoteResponse) string {
	labels := make([]string, 0, len(resp.RoutePlan))
	for _, hop := range resp.RoutePlan {
		if hop.SwapInfo.Label != "" {
			labels = append(labels, hop.SwapInfo.Label)
		}
	}
	if len(labels) == 0 {
		return "unknown"
	}
	return strings.Join(labels, "+")
}
