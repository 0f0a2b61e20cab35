package jupiter

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

type fakeEngine struct {
	sig string
	got string
	err error
}

func (f *fakeEngine) SubmitAndConfirm(_ context.Context, encoded string) (string, error) {
	f.got = encoded
	return f.sig, f.err
}

func testRequest() model.SwapRequest {
	return model.SwapRequest{
		Input:  registry.GIDDY,
		Output: registry.USDC,
		Amount: 5_000_000,
	}
}

func newClient(serverURL string, engine *fakeEngine) *Client {
	return New(httpx.New(5*time.Second, 0), serverURL, engine, "user", 300, zerolog.Nop())
}

func TestQuoteRetainsRawPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("slippageBps"); got != "300" {
			t.Fatalf("unexpected slippage %s", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"inAmount":             "5000000",
			"outAmount":            "400000",
			"otherAmountThreshold": "390000",
			"routePlan": []map[string]any{
				{"swapInfo": map[string]any{"label": "Whirlpool"}},
			},
		})
	}))
	defer srv.Close()

	quote, err := newClient(srv.URL, &fakeEngine{}).Quote(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.OutAmount != 400_000 || quote.Route != "Whirlpool" {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if len(quote.Payload) == 0 {
		t.Fatal("quote must retain the raw payload for the swap build")
	}
}

func TestQuotePollsUntilUsable(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			json.NewEncoder(w).Encode(map[string]any{"outAmount": "0"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"inAmount": "1", "outAmount": "2"})
	}))
	defer srv.Close()

	quote, err := newClient(srv.URL, &fakeEngine{}).Quote(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 polls, got %d", calls)
	}
	if quote.OutAmount != 2 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestQuoteGivesUpAfterPollBudget(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"outAmount": "0"})
	}))
	defer srv.Close()

	if _, err := newClient(srv.URL, &fakeEngine{}).Quote(context.Background(), testRequest()); err == nil {
		t.Fatal("expected exhausted quote poll to fail")
	}
	if calls != 5 {
		t.Fatalf("expected 5 polls, got %d", calls)
	}
}

func TestExecuteBuildsAndSubmits(t *testing.T) {
	engine := &fakeEngine{sig: "sig-xyz"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["userPublicKey"] != "user" {
			t.Fatalf("unexpected user key: %v", body["userPublicKey"])
		}
		if body["quoteResponse"] == nil {
			t.Fatal("swap build must echo the quote payload")
		}
		json.NewEncoder(w).Encode(map[string]any{"swapTransaction": "dW5zaWduZWQ="})
	}))
	defer srv.Close()

	quote := model.Quote{OutAmount: 400_000, Payload: json.RawMessage(`{"outAmount":"400000"}`)}
	exec, err := newClient(srv.URL, engine).Execute(context.Background(), testRequest(), quote)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if engine.got != "dW5zaWduZWQ=" {
		t.Fatalf("engine saw wrong transaction: %s", engine.got)
	}
	if exec.Signature != "sig-xyz" || exec.OutAmount != 400_000 {
		t.Fatalf("unexpected execution: %+v", exec)
	}
}

func TestExecuteRequiresPayload(t *testing.T) {
	if _, err := newClient("http://unused", &fakeEngine{}).Execute(context.Background(), testRequest(), model.Quote{}); err == nil {
		t.Fatal("expected missing payload error")
	}
}
