package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeWallet struct {
	signed string
	got    string
	err    error
}

func (f *fakeWallet) SignBase64(encoded string) (string, error) {
	f.got = encoded
	return f.signed, f.err
}

type fakeChain struct {
	sig string
	got string
	err error
}

func (f *fakeChain) SubmitRawBase64(_ context.Context, encoded string) (string, error) {
	f.got = encoded
	return f.sig, f.err
}

func TestSignOrderDelegatesToWallet(t *testing.T) {
	w := &fakeWallet{signed: "signed"}
	e := New(w, &fakeChain{}, zerolog.Nop())

	out, err := e.SignOrder("unsigned")
	if err != nil {
		t.Fatalf("SignOrder failed: %v", err)
	}
	if out != "signed" || w.got != "unsigned" {
		t.Fatalf("unexpected signing flow: out=%s saw=%s", out, w.got)
	}
}

func TestSubmitAndConfirmSignsThenSubmits(t *testing.T) {
	w := &fakeWallet{signed: "signed"}
	c := &fakeChain{sig: "sig-1"}
	e := New(w, c, zerolog.Nop())

	sig, err := e.SubmitAndConfirm(context.Background(), "unsigned")
	if err != nil {
		t.Fatalf("SubmitAndConfirm failed: %v", err)
	}
	if sig != "sig-1" {
		t.Fatalf("unexpected signature: %s", sig)
	}
	if c.got != "signed" {
		t.Fatalf("chain must receive the signed transaction, got %s", c.got)
	}
}

func TestSubmitAndConfirmStopsOnSigningFailure(t *testing.T) {
	w := &fakeWallet{err: errors.New("bad key")}
	c := &fakeChain{}
	e := New(w, c, zerolog.Nop())

	if _, err := e.SubmitAndConfirm(context.Background(), "unsigned"); err == nil {
		t.Fatal("expected signing error")
	}
	if c.got != "" {
		t.Fatal("nothing must reach the chain when signing fails")
	}
}

func TestSubmitAndConfirmReturnsSignatureWithError(t *testing.T) {
	w := &fakeWallet{signed: "signed"}
	c := &fakeChain{sig: "sig-2", err: errors.New("not confirmed")}
	e := New(w, c, zerolog.Nop())

	sig, err := e.SubmitAndConfirm(context.Background(), "unsigned")
	if err == nil {
		t.Fatal("expected confirmation error")
	}
	if sig != "sig-2" {
		t.Fatalf("signature must survive a confirmation failure, got %q", sig)
	}
}
