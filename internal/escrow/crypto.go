// Package escrow manages the single-use custodial TON wallets that hold
// advertiser funds for the lifetime of a deal.
package escrow

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

const masterKeyLen = 32 // AES-256

// ErrSeedDecrypt is returned on any failure to recover seed material.
// Callers must treat it as fatal-but-non-destructive: the deal stays in
// its current state and the failure goes to operators, because a lost
// seed means lost access to the escrowed funds. An empty or truncated
// ciphertext is this error, never an "empty but valid" seed.
var ErrSeedDecrypt = errors.New("escrow: seed decryption failed")

// SeedCipher seals and opens wallet seed phrases with AES-256-GCM under
// a process-wide master key.
type SeedCipher struct {
	aead cipher.AEAD
}

// NewSeedCipher builds a cipher from a hex-encoded 32-byte master key.
func NewSeedCipher(masterKeyHex string) (*SeedCipher, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("escrow: master key is not valid hex: %w", err)
	}
	if len(key) != masterKeyLen {
		return nil, fmt.Errorf("escrow: expected %d-byte master key, got %d bytes", masterKeyLen, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("escrow: creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("escrow: creating GCM: %w", err)
	}
	return &SeedCipher{aead: aead}, nil
}

// Seal encrypts a seed phrase. Output layout is nonce || ciphertext.
func (c *SeedCipher) Seal(seed string) ([]byte, error) {
	if seed == "" {
		return nil, errors.New("escrow: refusing to seal empty seed")
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("escrow: generating nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, []byte(seed), nil), nil
}

// Open decrypts data produced by Seal. Any failure, including an empty
// or malformed blob, is reported as ErrSeedDecrypt.
func (c *SeedCipher) Open(enc []byte) (string, error) {
	if len(enc) <= c.aead.NonceSize() {
		return "", ErrSeedDecrypt
	}
	nonce, ciphertext := enc[:c.aead.NonceSize()], enc[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSeedDecrypt, err)
	}
	if len(plaintext) == 0 {
		return "", ErrSeedDecrypt
	}
	return string(plaintext), nil
}
