// Package vault encrypts partner access tokens at rest and upgrades legacy
// plaintext tokens to the encrypted form the first time they are read.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrEncryptionUnavailable = errors.New("vault: encryption key unavailable")
	ErrEncryptionFailed      = errors.New("vault: encryption failed")
	ErrDecryptionFailed      = errors.New("vault: decryption failed")
	ErrCorruptedCredential   = errors.New("vault: stored credential is corrupted, re-register the account")
)

const (
	formatVersion byte = 1

	// MinEncryptedLength is the shortest string IsEncrypted will accept as ciphertext.
	MinEncryptedLength = 50
)

// Tokens issued by the partner start with one of these and are never ciphertext.
var plaintextPrefixes = []string{"EAA", "IGQV", "Bearer "}

type Vault struct {
	key    []byte
	ok     bool
	logger *zap.Logger
}

// New resolves the key once. A missing or malformed key leaves the vault in a
// degraded state where every cryptographic call fails with ErrEncryptionUnavailable.
func New(encodedKey string, logger *zap.Logger) *Vault {
	v := &Vault{logger: logger}
	key, err := decodeKey(encodedKey)
	switch {
	case encodedKey == "":
		logger.Warn("token encryption key not configured, credential vault disabled")
	case err != nil:
		logger.Error("token encryption key rejected, credential vault disabled", zap.Error(err))
	default:
		v.key = key
		v.ok = true
	}
	return v
}

// GetKey returns a copy of the active key. ok is false when no usable key is configured.
func (v *Vault) GetKey() ([]byte, bool) {
	if v == nil || !v.ok {
		return nil, false
	}
	key := make([]byte, len(v.key))
	copy(key, v.key)
	return key, true
}

func (v *Vault) Encrypt(plaintext string) (string, error) {
	key, ok := v.GetKey()
	if !ok {
		return "", ErrEncryptionUnavailable
	}
	if plaintext == "" {
		return "", fmt.Errorf("%w: plaintext is required", ErrEncryptionFailed)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: nonce generation: %v", ErrEncryptionFailed, err)
	}

	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, formatVersion)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), []byte{formatVersion})

	return base64.URLEncoding.EncodeToString(out), nil
}

func (v *Vault) Decrypt(ciphertext string) (string, error) {
	key, ok := v.GetKey()
	if !ok {
		return "", ErrEncryptionUnavailable
	}

	raw, err := base64.URLEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("%w: decode payload: %v", ErrDecryptionFailed, err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(raw) < 1+aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: payload too short", ErrDecryptionFailed)
	}
	if raw[0] != formatVersion {
		return "", fmt.Errorf("%w: unknown format version %d", ErrDecryptionFailed, raw[0])
	}

	nonce := raw[1 : 1+aead.NonceSize()]
	sealed := raw[1+aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, []byte{formatVersion})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// IsEncrypted is a best-effort classifier. It can mistake a long opaque
// plaintext token for ciphertext; MigrateIfNeeded then reports corruption.
func (v *Vault) IsEncrypted(token string) bool {
	token = strings.TrimSpace(token)
	for _, prefix := range plaintextPrefixes {
		if strings.HasPrefix(token, prefix) {
			return false
		}
	}
	if len(token) <= MinEncryptedLength {
		return false
	}
	_, err := base64.URLEncoding.DecodeString(token)
	return err == nil
}

// MigrateIfNeeded returns the canonical encrypted form of token. A plaintext
// token is encrypted and reported as migrated; an encrypted one is trial
// decrypted and returned unchanged. The caller persists a migrated token.
func (v *Vault) MigrateIfNeeded(token string) (string, bool, error) {
	if !v.IsEncrypted(token) {
		encrypted, err := v.Encrypt(token)
		if err != nil {
			return "", false, err
		}
		v.logger.Info("legacy plaintext credential encrypted")
		return encrypted, true, nil
	}

	if _, err := v.Decrypt(token); err != nil {
		if errors.Is(err, ErrEncryptionUnavailable) {
			return "", false, err
		}
		return "", false, fmt.Errorf("%w: %v", ErrCorruptedCredential, err)
	}
	return token, false, nil
}

func decodeKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errors.New("key is empty")
	}

	var key []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		if key, err = enc.DecodeString(encoded); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("key is not valid base64: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must decode to %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}
