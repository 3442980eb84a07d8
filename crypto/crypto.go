// Package crypto seals stored chat credentials at rest with AES-256-GCM.
// Sealed values carry a version so plaintext rows written before a key was
// configured stay readable.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Storage versions recorded next to a sealed value.
const (
	VersionPlaintext = 0
	VersionAESGCM    = 1
)

// ErrNoKey is returned when a sealed value is read without a configured key.
var ErrNoKey = errors.New("value is encrypted but no encryption key is configured")

// Encryptor provides authenticated encryption of small secrets.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	// Decrypt fails when the ciphertext was tampered with or sealed under
	// another key.
	Decrypt(ciphertext []byte) ([]byte, error)
	KeyID() string
}

// AESEncryptor implements Encryptor using AES-256-GCM. The output layout is
// nonce || ciphertext || tag.
type AESEncryptor struct {
	aead  cipher.AEAD
	keyID string
}

// NewAESEncryptor creates an encryptor from a base64-encoded 32-byte key,
// e.g. one produced by `openssl rand -base64 32`.
func NewAESEncryptor(base64Key string) (*AESEncryptor, error) {
	return NewAESEncryptorWithID(base64Key, "default")
}

// NewAESEncryptorWithID is NewAESEncryptor with an explicit key id, recorded
// with every sealed value for rotation.
func NewAESEncryptorWithID(base64Key, keyID string) (*AESEncryptor, error) {
	if base64Key == "" {
		return nil, errors.New("encryption key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: base64 decode failed: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: must be 32 bytes (256 bits), got %d bytes", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &AESEncryptor{aead: aead, keyID: keyID}, nil
}

func (e *AESEncryptor) KeyID() string { return e.keyID }

func (e *AESEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, errors.New("plaintext is empty")
	}
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *AESEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	n := e.aead.NonceSize()
	if len(ciphertext) < n+e.aead.Overhead() {
		return nil, fmt.Errorf("ciphertext too short: got %d bytes", len(ciphertext))
	}
	plaintext, err := e.aead.Open(nil, ciphertext[:n], ciphertext[n:], nil)
	if err != nil {
		// no detail: it would only help an attacker
		return nil, errors.New("decryption failed: authentication or integrity check failed")
	}
	return plaintext, nil
}

// Seal encrypts a token for a text column. With a nil encryptor the token is
// stored as plaintext and VersionPlaintext is returned.
func Seal(enc Encryptor, token string) (stored string, version int, keyID string, err error) {
	if enc == nil || token == "" {
		return token, VersionPlaintext, "", nil
	}
	ct, err := enc.Encrypt([]byte(token))
	if err != nil {
		return "", 0, "", err
	}
	return base64.StdEncoding.EncodeToString(ct), VersionAESGCM, enc.KeyID(), nil
}

// Open reverses Seal according to the stored version.
func Open(enc Encryptor, stored string, version int) (string, error) {
	switch version {
	case VersionPlaintext:
		return stored, nil
	case VersionAESGCM:
		if enc == nil {
			return "", ErrNoKey
		}
		ct, err := base64.StdEncoding.DecodeString(stored)
		if err != nil {
			return "", fmt.Errorf("base64 decode failed: %w", err)
		}
		pt, err := enc.Decrypt(ct)
		if err != nil {
			return "", err
		}
		return string(pt), nil
	default:
		return "", fmt.Errorf("unknown encryption version %d", version)
	}
}

// Mask hides all but the last six characters of a token for logs.
func Mask(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return "***" + token[len(token)-6:]
}
