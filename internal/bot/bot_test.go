package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/OFiDCrypt/giddy-swaps/internal/model"
	"github.com/OFiDCrypt/giddy-swaps/internal/registry"
)

type fakeBalances struct{ snap model.Snapshot }

func (f *fakeBalances) Snapshot(context.Context) model.Snapshot { return f.snap }

type fakeSwapper struct {
	outcome model.Outcome
	err     error
	req     model.SwapRequest
}

func (f *fakeSwapper) Swap(_ context.Context, req model.SwapRequest) (model.Outcome, error) {
	f.req = req
	return f.outcome, f.err
}

type fakeSession struct {
	running bool
	started int
	stopped int
}

func (f *fakeSession) Start(context.Context) error { f.started++; f.running = true; return nil }
func (f *fakeSession) Stop()                       { f.stopped++; f.running = false }
func (f *fakeSession) Running() bool               { return f.running }

type fakeHistory struct{ outcomes []model.Outcome }

func (f *fakeHistory) List(int) ([]model.Outcome, error) { return f.outcomes, nil }

func newTestBot(t *testing.T, swapper *fakeSwapper, session *fakeSession, history *fakeHistory) *Bot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	balances := &fakeBalances{snap: model.Snapshot{
		Native: 50_000_000,
		Tokens: map[string]uint64{
			registry.USDC.Mint.String():  20_000_000,
			registry.GIDDY.Mint.String(): 5_000_000,
		},
	}}
	return New(Config{BotToken: "t", ChatID: 1, APIBase: srv.URL}, balances, swapper, session, history, zerolog.Nop())
}

func TestHandleBalance(t *testing.T) {
	b := newTestBot(t, &fakeSwapper{}, &fakeSession{}, &fakeHistory{})
	reply := b.handle(context.Background(), "/balance")
	if !strings.Contains(reply, "USDC: 20.000000") || !strings.Contains(reply, "GIDDY: 5.000000") || !strings.Contains(reply, "SOL: 0.050000") {
		t.Fatalf("unexpected reply: %s", reply)
	}
}

func TestHandleSwapRequiresAmount(t *testing.T) {
	b := newTestBot(t, &fakeSwapper{}, &fakeSession{}, &fakeHistory{})
	if reply := b.handle(context.Background(), "/swap"); !strings.Contains(reply, "Usage") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if reply := b.handle(context.Background(), "/swap banana"); !strings.Contains(reply, "Invalid amount") {
		t.Fatalf("unexpected reply: %s", reply)
	}
}

func TestHandleSwapRunsCascade(t *testing.T) {
	swapper := &fakeSwapper{outcome: model.Outcome{
		Status:    model.StatusSuccess,
		Signature: "sig-1",
		Tier:      "jupiter",
		Fallback:  true,
	}}
	b := newTestBot(t, swapper, &fakeSession{}, &fakeHistory{})

	reply := b.handle(context.Background(), "/swap 10")
	if swapper.req.Amount != 10_000_000 || swapper.req.Input.Symbol != "USDC" {
		t.Fatalf("unexpected request: %+v", swapper.req)
	}
	if !strings.Contains(reply, "jupiter (fallback)") || !strings.Contains(reply, "solscan.io/tx/sig-1") {
		t.Fatalf("unexpected reply: %s", reply)
	}
}

func TestHandleSwapRendersFailure(t *testing.T) {
	swapper := &fakeSwapper{outcome: model.Outcome{
		Status: model.StatusFailed,
		Err:    "All alternate routes failed",
	}}
	b := newTestBot(t, swapper, &fakeSession{}, &fakeHistory{})
	if reply := b.handle(context.Background(), "/swap 1"); !strings.Contains(reply, "All alternate routes failed") {
		t.Fatalf("unexpected reply: %s", reply)
	}
}

func TestHandleSessionLifecycle(t *testing.T) {
	session := &fakeSession{}
	b := newTestBot(t, &fakeSwapper{}, session, &fakeHistory{})

	if reply := b.handle(context.Background(), "/stop"); !strings.Contains(reply, "No session") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if reply := b.handle(context.Background(), "/start"); !strings.Contains(reply, "Session started") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if reply := b.handle(context.Background(), "/start"); !strings.Contains(reply, "already running") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if reply := b.handle(context.Background(), "/stop"); !strings.Contains(reply, "Stop requested") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if session.started != 1 || session.stopped != 1 {
		t.Fatalf("unexpected lifecycle counts: %+v", session)
	}
}

func TestHandleHistory(t *testing.T) {
	history := &fakeHistory{outcomes: []model.Outcome{
		{
			Status:        model.StatusSuccess,
			CorrelationID: "cid-1",
			Tier:          "ultra",
			Signature:     "sig-1",
			OutputMint:    registry.GIDDY.Mint.String(),
			OutAmount:     9_980_000,
		},
		{Status: model.StatusFailed, CorrelationID: "cid-2", Err: "All alternate routes failed"},
	}}
	b := newTestBot(t, &fakeSwapper{}, &fakeSession{}, history)

	reply := b.handle(context.Background(), "/history")
	if !strings.Contains(reply, "cid-1 via ultra: 9.980000 GIDDY out") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if !strings.Contains(reply, "cid-2 failed") {
		t.Fatalf("unexpected reply: %s", reply)
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	b := newTestBot(t, &fakeSwapper{}, &fakeSession{}, &fakeHistory{})
	if reply := b.handle(context.Background(), "hello there"); reply != "" {
		t.Fatalf("unexpected reply: %s", reply)
	}
}
