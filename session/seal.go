package session

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealMagic   = "DVSS\x01"
	sealSaltLen = 16

	sealArgonTime    = 1
	sealArgonMemory  = 19 * 1024
	sealArgonThreads = 1
)

var errSealTooShort = errors.New("sealed payload too short")

// Sealer encrypts the session document at rest with XChaCha20-Poly1305.
// The key is derived from a passphrase with Argon2id and a per-write salt.
//
// Layout: magic | salt(16) | nonce(24) | ciphertext.
type Sealer struct {
	passphrase []byte
}

// NewSealer returns a Sealer for passphrase.
func NewSealer(passphrase string) *Sealer {
	return &Sealer{passphrase: []byte(passphrase)}
}

func (s *Sealer) key(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, sealArgonTime, sealArgonMemory, sealArgonThreads, chacha20poly1305.KeySize)
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, sealSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealMagic)+len(salt)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, []byte(sealMagic)), nil
}

// Open reverses Seal. A wrong passphrase and tampering both fail
// authentication.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, []byte(sealMagic)) {
		return nil, errors.New("not a sealed session file")
	}
	rest := sealed[len(sealMagic):]
	if len(rest) < sealSaltLen+chacha20poly1305.NonceSizeX {
		return nil, errSealTooShort
	}
	salt := rest[:sealSaltLen]
	nonce := rest[sealSaltLen : sealSaltLen+chacha20poly1305.NonceSizeX]
	ct := rest[sealSaltLen+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ct, []byte(sealMagic))
	if err != nil {
		return nil, fmt.Errorf("decrypt session file: %w", err)
	}
	return plaintext, nil
}
