package ultra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/OFiDCrypt/giddy-swaps/internal/httpx"
	"github.com/OFiDCrypt/giddy-swaps/internal/model"
	"github.com/OFiDCrypt/giddy-swaps/internal/registry"
)

type fakeSigner struct {
	signed string
	got    string
	err    error
}

func (f *fakeSigner) SignOrder(encoded string) (string, error) {
	f.got = encoded
	return f.signed, f.err
}

func testRequest() model.SwapRequest {
	return model.SwapRequest{
		Input:         registry.USDC,
		Output:        registry.GIDDY,
		Amount:        10_000_000,
		CorrelationID: "test",
	}
}

func newClient(serverURL string, signer *fakeSigner) *Client {
	return New(httpx.New(5*time.Second, 0), serverURL, signer, "taker", zerolog.Nop())
}

func TestQuoteNormalizesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("inputMint"); got != registry.USDC.Mint.String() {
			t.Fatalf("unexpected inputMint %s", got)
		}
		if got := r.URL.Query().Get("swapMode"); got != "ExactIn" {
			t.Fatalf("unexpected swapMode %s", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"inAmount":             "10000000",
			"outAmount":            "123456789",
			"otherAmountThreshold": "120000000",
			"requestId":            "req-1",
			"transaction":          "dHg=",
			"routePlan": []map[string]any{
				{"swapInfo": map[string]any{"label": "Meteora DLMM"}},
			},
		})
	}))
	defer srv.Close()

	quote, err := newClient(srv.URL, &fakeSigner{}).Quote(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.Provider != Name || quote.InAmount != 10_000_000 || quote.OutAmount != 123_456_789 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if quote.MinOutAmount != 120_000_000 {
		t.Fatalf("unexpected min out: %d", quote.MinOutAmount)
	}
	if quote.Route != "Meteora DLMM" || quote.RequestID != "req-1" || quote.Transaction != "dHg=" {
		t.Fatalf("unexpected quote material: %+v", quote)
	}
}

func TestQuoteRejectsMissingTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"inAmount": "1", "outAmount": "1"})
	}))
	defer srv.Close()

	if _, err := newClient(srv.URL, &fakeSigner{}).Quote(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error for quote without transaction")
	}
}

func TestExecuteSignsAndSubmits(t *testing.T) {
	signer := &fakeSigner{signed: "c2lnbmVk"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/execute" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["signedTransaction"] != "c2lnbmVk" || body["requestId"] != "req-1" {
			t.Fatalf("unexpected body: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":             "Success",
			"signature":          "sig-abc",
			"outputAmountResult": "99",
		})
	}))
	defer srv.Close()

	exec, err := newClient(srv.URL, signer).Execute(context.Background(), testRequest(), model.Quote{
		Transaction: "dHg=",
		RequestID:   "req-1",
		OutAmount:   100,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if signer.got != "dHg=" {
		t.Fatalf("signer saw wrong transaction: %s", signer.got)
	}
	if exec.Signature != "sig-abc" || exec.OutAmount != 99 {
		t.Fatalf("unexpected execution: %+v", exec)
	}
}

func TestExecuteFailureStatusSurfacesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "Failed", "error": "slippage exceeded"})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, &fakeSigner{signed: "x"}).Execute(context.Background(), testRequest(), model.Quote{Transaction: "dHg="})
	if err == nil {
		t.Fatal("expected execute failure")
	}
}

func TestExecuteFallsBackToQuotedAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "Success", "signature": "sig"})
	}))
	defer srv.Close()

	exec, err := newClient(srv.URL, &fakeSigner{signed: "x"}).Execute(context.Background(), testRequest(), model.Quote{
		Transaction: "dHg=",
		OutAmount:   777,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if exec.OutAmount != 777 {
		t.Fatalf("expected quoted amount fallback, got %d", exec.OutAmount)
	}
}
