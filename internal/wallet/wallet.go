// Package wallet loads the operator keypair and signs transactions. The
// private key never leaves this package; everything else works with the
// public key or a signing callback.
package wallet

import (
	"encoding/base64"

	"github.com/gagliardetto/solana-go"

	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
)

type Wallet struct {
	key solana.PrivateKey
}

// Load reads a Solana CLI keygen file (JSON byte array) from path.
func Load(path string) (*Wallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "load keypair", err)
	}
	return &Wallet{key: key}, nil
}

// FromPrivateKey wraps an in-memory key, used by tests.
func FromPrivateKey(key solana.PrivateKey) *Wallet {
	return &Wallet{key: key}
}

func (w *Wallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// Sign signs every required signature slot the wallet's key can serve.
func (w *Wallet) Sign(tx *solana.Transaction) error {
	_, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(w.key.PublicKey()) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}
	return nil
}

// SignBase64 decodes a base64-encoded unsigned transaction, signs it, and
// returns the signed bytes re-encoded. Aggregators exchange transactions in
// this form.
func (w *Wallet) SignBase64(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeSigner, "decode transaction", err)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeSigner, "parse transaction", err)
	}
	if err := w.Sign(tx); err != nil {
		return "", err
	}
	signed, err := tx.MarshalBinary()
	if err != nil {
		return "", clierr.Wrap(clierr.CodeSigner, "serialize signed transaction", err)
	}
	return base64.StdEncoding.EncodeToString(signed), nil
}
