// Package ultra implements the primary tier: the aggregator's managed order
// flow, where the provider assembles, routes, and submits the transaction
// and the bot only signs it.
package ultra

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
	"github.com/OFiDCrypt/giddy-swaps/internal/httpx"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
	"github.com/OFiDCrypt/giddy-swaps/internal/providers"
)

const Name = "ultra"

type Client struct {
	http    *httpx.Client
	baseURL string
	signer  providers.Signer
	taker   string
	log     zerolog.Logger
}

func New(http *httpx.Client, baseURL string, signer providers.Signer, taker string, log zerolog.Logger) *Client {
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		taker:   taker,
		log:     log.With().Str("provider", Name).Logger(),
	}
}

func (c *Client) Name() string { return Name }

type orderResponse struct {
	InAmount    string `json:"inAmount"`
	OutAmount   string `json:"outAmount"`
	Threshold   string `json:"otherAmountThreshold"`
	RequestID   string `json:"requestId"`
	Transaction string `json:"transaction"`
	RoutePlan   []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
	ErrorMessage string `json:"errorMessage"`
}

// Quote requests an order for the pair. The returned quote carries the
// unsigned transaction and request id Execute needs.
func (c *Client) Quote(ctx context.Context, req model.SwapRequest) (model.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.Input.Mint.String())
	q.Set("outputMint", req.Output.Mint.String())
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("taker", c.taker)
	q.Set("swapMode", "ExactIn")

	var resp orderResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/order?"+q.Encode(), &resp); err != nil {
		return model.Quote{}, err
	}
	if resp.ErrorMessage != "" {
		return model.Quote{}, clierr.New(clierr.CodeUnavailable, "order rejected: "+resp.ErrorMessage)
	}
	if resp.Transaction == "" {
		return model.Quote{}, clierr.New(clierr.CodeUnavailable, "order response carried no transaction")
	}

	inAmount, err := parseAmount(resp.InAmount)
	if err != nil {
		return model.Quote{}, err
	}
	outAmount, err := parseAmount(resp.OutAmount)
	if err != nil {
		return model.Quote{}, err
	}
	minOut, _ := strconv.ParseUint(resp.Threshold, 10, 64)

	quote := model.Quote{
		Provider:     Name,
		InAmount:     inAmount,
		OutAmount:    outAmount,
		MinOutAmount: minOut,
		Route:        routeLabel(resp),
		RequestID:    resp.RequestID,
		Transaction:  resp.Transaction,
	}
	c.log.Debug().
		Uint64("in", quote.InAmount).
		Uint64("out", quote.OutAmount).
		Str("route", quote.Route).
		Msg("order quoted")
	return quote, nil
}

type executeRequest struct {
	SignedTransaction string `json:"signedTransaction"`
	RequestID         string `json:"requestId"`
}

type executeResponse struct {
	Status       string `json:"status"`
	Signature    string `json:"signature"`
	Error        string `json:"error"`
	OutputResult string `json:"outputAmountResult"`
}

// Execute signs the order's transaction and hands it back for submission.
// The provider lands it on chain and reports the settled output amount.
func (c *Client) Execute(ctx context.Context, req model.SwapRequest, quote model.Quote) (model.Execution, error) {
	signed, err := c.signer.SignOrder(quote.Transaction)
	if err != nil {
		return model.Execution{}, err
	}

	var resp executeResponse
	err = c.http.PostJSON(ctx, c.baseURL+"/execute", executeRequest{
		SignedTransaction: signed,
		RequestID:         quote.RequestID,
	}, &resp)
	if err != nil {
		return model.Execution{}, err
	}

	if !strings.EqualFold(resp.Status, "Success") {
		msg := resp.Error
		if msg == "" {
			msg = "status " + resp.Status
		}
		return model.Execution{}, clierr.New(clierr.CodeUnavailable, "execute failed: "+msg)
	}
	if resp.Signature == "" {
		return model.Execution{}, clierr.New(clierr.CodeUnavailable, "execute succeeded without a signature")
	}

	outAmount := quote.OutAmount
	if settled, err := strconv.ParseUint(resp.OutputResult, 10, 64); err == nil && settled > 0 {
		outAmount = settled
	}
	return model.Execution{Signature: resp.Signature, OutAmount: outAmount}, nil
}

func parseAmount(raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("parse amount %q", raw), err)
	}
	return v, nil
}

func routeLabel(resp orderResponse) string {
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
