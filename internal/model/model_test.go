package model

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, v string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return parsed
}

func TestSnapshotTokenUnknownMintIsZero(t *testing.T) {
	snap := Snapshot{Tokens: map[string]uint64{}}
	if snap.Token(usdc.Mint) != 0 {
		t.Fatal("expected zero for untracked mint")
	}
}

func TestOutcomeCommitted(t *testing.T) {
	ok := Outcome{Status: StatusSuccess, Signature: "sig"}
	if !ok.Committed() {
		t.Fatal("expected committed outcome")
	}
	failed := Outcome{Status: StatusFailed, Err: "All alternate routes failed"}
	if failed.Committed() {
		t.Fatal("failed outcome must not be committed")
	}
	noSig := Outcome{Status: StatusSuccess}
	if noSig.Committed() {
		t.Fatal("success without signature must not be committed")
	}
}
