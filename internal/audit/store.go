package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/OFiDCrypt/giddy-swaps/internal/model"
)

// Store persists terminal swap outcomes, keyed by correlation id. It backs
// the history command; the JSON artifacts on disk remain the primary audit
// trail.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create outcome store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create outcome lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open outcome sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS outcomes (
			correlation_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			tier TEXT NOT NULL,
			signature TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_outcomes_recorded ON outcomes(recorded_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init outcome schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(outcome model.Outcome) error {
	if strings.TrimSpace(outcome.CorrelationID) == "" {
		return fmt.Errorf("save outcome: missing correlation id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock outcome store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock outcome store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO outcomes (correlation_id, status, tier, signature, recorded_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO UPDATE SET
			status=excluded.status,
			tier=excluded.tier,
			signature=excluded.signature,
			recorded_at=excluded.recorded_at,
			payload=excluded.payload
	`, outcome.CorrelationID, string(outcome.Status), outcome.Tier, outcome.Signature,
		time.Now().UTC().Unix(), payload)
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

func (s *Store) Get(correlationID string) (model.Outcome, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM outcomes WHERE correlation_id = ?", correlationID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Outcome{}, fmt.Errorf("outcome not found: %s", correlationID)
		}
		return model.Outcome{}, fmt.Errorf("read outcome: %w", err)
	}
	var outcome model.Outcome
	if err := json.Unmarshal(payload, &outcome); err != nil {
		return model.Outcome{}, fmt.Errorf("decode outcome payload: %w", err)
	}
	return outcome, nil
}

func (s *Store) List(limit int) ([]model.Outcome, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query("SELECT payload FROM outcomes ORDER BY recorded_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make([]model.Outcome, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		var outcome model.Outcome
		if err := json.Unmarshal(payload, &outcome); err != nil {
			return nil, fmt.Errorf("decode outcome row: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}
	return outcomes, nil
}
