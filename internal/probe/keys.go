package probe

import (
	"context"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

func init() {
	Register(DefaultOperation, Func{Avail: p256Available, Call: generateP256})
	Register("ed25519", Func{Call: generateEd25519})
}

// p256Available reports whether the P-256 implementation accepts a known
// valid scalar. It does not touch the random source.
func p256Available() bool {
	scalar := make([]byte, 32)
	scalar[31] = 1
	_, err := ecdh.P256().NewPrivateKey(scalar)
	return err == nil
}

// generateP256 creates a P-256 key-agreement key and returns the base64 of
// its uncompressed public point.
func generateP256(_ context.Context) (string, error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generating P-256 key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key.PublicKey().Bytes()), nil
}

func generateEd25519(_ context.Context) (string, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generating Ed25519 key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}
