package remote

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a context sealing key.
const KeySize = chacha20poly1305.KeySize

// Sealer encrypts and authenticates the context blobs of request and response
// envelopes. A nil Sealer passes blobs through in the clear.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer constructs a sealer from a KeySize-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("context key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// DeriveKey stretches a shared passphrase into a sealing key.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 2, 19*1024, 1, KeySize)
}

// Seal encrypts plaintext bound to ad. The nonce is prefixed to the output.
func (s *Sealer) Seal(plaintext, ad []byte) ([]byte, error) {
	if s == nil {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, ad), nil
}

// Open authenticates and decrypts a blob produced by Seal with the same ad.
func (s *Sealer) Open(blob, ad []byte) ([]byte, error) {
	if s == nil {
		return blob, nil
	}
	if len(blob) < s.aead.NonceSize() {
		return nil, errors.New("sealed blob too short")
	}
	nonce, ct := blob[:s.aead.NonceSize()], blob[s.aead.NonceSize():]
	return s.aead.Open(nil, nonce, ct, ad)
}
