// Package cipher seals agent credentials at rest with XChaCha20-Poly1305.
//
// Sealed values are base64 strings of
//
//	[Version: 1 byte] [Nonce: 24 bytes] [Ciphertext+Tag]
//
// The version byte and the caller supplied binding (the agent id) are
// authenticated as additional data, so a value copied onto another agent
// fails to open.
package cipher

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedVersion byte = 0x01

var hkdfInfo = []byte("agent-ledger.credentials.v1")

// ErrNoKey is returned when the cipher was built without a key.
var ErrNoKey = errors.New("cipher key not configured")

type Cipher struct {
	key []byte
}

// New derives the sealing key from a configured secret. An empty secret
// yields a cipher that refuses to seal or open.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return &Cipher{}, nil
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("deriving credential key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Encrypt seals plaintext bound to binding.
func (c *Cipher) Encrypt(plaintext []byte, binding string) (string, error) {
	if len(c.key) == 0 {
		return "", ErrNoKey
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating random nonce: %w", err)
	}

	out := make([]byte, 1+len(nonce), 1+len(nonce)+len(plaintext)+aead.Overhead())
	out[0] = sealedVersion
	copy(out[1:], nonce[:])
	out = aead.Seal(out, nonce[:], plaintext, aad(binding))
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt with the same binding.
func (c *Cipher) Decrypt(sealed string, binding string) ([]byte, error) {
	if len(c.key) == 0 {
		return nil, ErrNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decoding sealed value: %w", err)
	}
	if len(raw) < 1+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("sealed value is %d bytes, too short", len(raw))
	}
	if raw[0] != sealedVersion {
		return nil, fmt.Errorf("sealed value version %d is not supported", raw[0])
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	nonce := raw[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, raw[1+chacha20poly1305.NonceSizeX:], aad(binding))
	if err != nil {
		return nil, fmt.Errorf("opening sealed value: %w", err)
	}
	return plaintext, nil
}

func aad(binding string) []byte {
	return append([]byte{sealedVersion}, binding...)
}
