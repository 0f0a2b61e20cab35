package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/OFiDCrypt/giddy-swaps/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "outcomes.db"), filepath.Join(dir, "outcomes.lock"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSaveAndGet(t *testing.T) {
	store := openTestStore(t)
	outcome := model.Outcome{
		Status:        model.StatusSuccess,
		CorrelationID: "2026-08-29T10-00-00-000Z",
		Signature:     "sig-1",
		Tier:          "ultra",
		InAmount:      10_000_000,
		OutAmount:     9_980_000,
	}
	if err := store.Save(outcome); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(outcome.CorrelationID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Signature != "sig-1" || got.Tier != "ultra" || got.OutAmount != 9_980_000 {
		t.Fatalf("unexpected outcome: %+v", got)
	}
}

func TestStoreSaveUpserts(t *testing.T) {
	store := openTestStore(t)
	outcome := model.Outcome{Status: model.StatusFailed, CorrelationID: "id-1", Err: "All alternate routes failed"}
	if err := store.Save(outcome); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	outcome.Status = model.StatusSuccess
	outcome.Signature = "sig-late"
	outcome.Err = ""
	if err := store.Save(outcome); err != nil {
		t.Fatalf("re-save failed: %v", err)
	}

	got, err := store.Get("id-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != model.StatusSuccess || got.Signature != "sig-late" {
		t.Fatalf("upsert did not replace: %+v", got)
	}
}

func TestStoreRejectsMissingCorrelationID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(model.Outcome{Status: model.StatusFailed}); err == nil {
		t.Fatal("expected missing correlation id error")
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Save(model.Outcome{Status: model.StatusSuccess, CorrelationID: id, Signature: id}); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}
	outcomes, err := store.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
}

func TestRecorderWritesAttemptArtifact(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, nil, zerolog.Nop())

	rec.RecordAttempt(Attempt{
		CorrelationID: "cid-1",
		Provider:      "ultra",
		InAmount:      1,
		Err:           "order rejected",
		At:            time.Now(),
	})

	matches, err := filepath.Glob(filepath.Join(dir, "attempt_ultra_cid-1_*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one attempt artifact, got %v (%v)", matches, err)
	}
	buf, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("artifact not readable: %v", err)
	}
	var attempt Attempt
	if err := json.Unmarshal(buf, &attempt); err != nil {
		t.Fatalf("artifact not valid JSON: %v", err)
	}
	if attempt.Err != "order rejected" {
		t.Fatalf("unexpected artifact: %+v", attempt)
	}
}

func TestRecorderKeepsRetriedAttempts(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, nil, zerolog.Nop())

	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	rec.RecordAttempt(Attempt{CorrelationID: "cid-3", Provider: "ultra", Err: "order unavailable", At: at})
	rec.RecordAttempt(Attempt{CorrelationID: "cid-3", Provider: "ultra", Signature: "sig", At: at.Add(time.Second)})

	matches, err := filepath.Glob(filepath.Join(dir, "attempt_ultra_cid-3_*.json"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("retried attempts must each keep their artifact, got %v", matches)
	}
}

func TestRecorderOutcomeReachesStore(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t)
	rec := NewRecorder(dir, store, zerolog.Nop())

	rec.RecordOutcome(model.Outcome{Status: model.StatusSuccess, CorrelationID: "cid-2", Signature: "sig"})

	if _, err := os.Stat(filepath.Join(dir, "outcome_cid-2.json")); err != nil {
		t.Fatalf("outcome artifact missing: %v", err)
	}
	if _, err := store.Get("cid-2"); err != nil {
		t.Fatalf("outcome missing from store: %v", err)
	}
}

func TestRecorderSessionLog(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, nil, zerolog.Nop())

	started := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	rec.RecordSession(SessionLog{
		StartedAt:  started,
		StoppedAt:  started.Add(time.Hour),
		StopReason: "stop requested",
		Rounds: []model.RoundRecord{
			{Round: 1, Direction: model.PhaseBuy, AmountIn: "10.000000", AmountOut: "9.980000", Loss: "0.020000", Signature: "sig"},
		},
	})

	matches, err := filepath.Glob(filepath.Join(dir, "session_*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one session log, got %v (%v)", matches, err)
	}
}
