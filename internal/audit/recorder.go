// Package audit persists the paper trail: one JSON artifact per tier
// attempt and per terminal outcome, a session log per completed session, and
// a sqlite store of outcomes for the history command.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/OFiDCrypt/giddy-swaps/internal/model"
)

// Attempt is the artifact written for every tier attempt, success or not.
type Attempt struct {
	CorrelationID string       `json:"correlation_id"`
	Provider      string       `json:"provider"`
	InputMint     string       `json:"input_mint"`
	OutputMint    string       `json:"output_mint"`
	InAmount      uint64       `json:"in_amount"`
	Quote         *model.Quote `json:"quote,omitempty"`
	Signature     string       `json:"signature,omitempty"`
	OutAmount     uint64       `json:"out_amount,omitempty"`
	Err           string       `json:"error,omitempty"`
	At            time.Time    `json:"at"`
}

// SessionLog captures one complete run of the session loop.
type SessionLog struct {
	StartedAt  time.Time           `json:"started_at"`
	StoppedAt  time.Time           `json:"stopped_at"`
	StopReason string              `json:"stop_reason"`
	Rounds     []model.RoundRecord `json:"rounds"`
}

type Recorder struct {
	dir   string
	store *Store
	log   zerolog.Logger
}

// NewRecorder writes artifacts under dir. The store may be nil, in which
// case only files are written.
func NewRecorder(dir string, store *Store, log zerolog.Logger) *Recorder {
	return &Recorder{
		dir:   dir,
		store: store,
		log:   log.With().Str("component", "audit").Logger(),
	}
}

// RecordAttempt persists a tier attempt artifact. The attempt timestamp is
// part of the filename: a retried tier shares the correlation id and provider
// name across attempts, and every one of them must survive for the audit
// trail. Audit failures are logged, never propagated: a swap must not fail
// because a disk write did.
func (r *Recorder) RecordAttempt(attempt Attempt) {
	at := attempt.At
	if at.IsZero() {
		at = time.Now()
	}
	name := fmt.Sprintf("attempt_%s_%s_%d.json", attempt.Provider, attempt.CorrelationID, at.UnixNano())
	r.writeArtifact(name, attempt)
}

// RecordOutcome persists the terminal outcome artifact and mirrors it into
// the sqlite store.
func (r *Recorder) RecordOutcome(outcome model.Outcome) {
	name := fmt.Sprintf("outcome_%s.json", outcome.CorrelationID)
	r.writeArtifact(name, outcome)
	if r.store != nil {
		if err := r.store.Save(outcome); err != nil {
			r.log.Warn().Err(err).Str("correlation_id", outcome.CorrelationID).Msg("outcome store write failed")
		}
	}
}

// RecordSession persists the session log.
func (r *Recorder) RecordSession(session SessionLog) {
	name := fmt.Sprintf("session_%s.json", model.NewCorrelationID(session.StartedAt))
	r.writeArtifact(name, session)
}

func (r *Recorder) writeArtifact(name string, payload any) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.log.Warn().Err(err).Msg("audit directory unavailable")
		return
	}
	buf, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		r.log.Warn().Err(err).Str("artifact", name).Msg("audit encode failed")
		return
	}
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		r.log.Warn().Err(err).Str("artifact", name).Msg("audit write failed")
		return
	}
	r.log.Debug().Str("artifact", path).Msg("audit artifact written")
}
