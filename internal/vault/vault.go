package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
)

const keySize = 32 // AES-256

var (
	// ErrDecryption is returned for malformed blobs or a wrong-size key.
	// Callers must never see partially-decrypted garbage.
	ErrDecryption = errors.New("vault: decryption failed")
	// ErrEncryption is returned when a plaintext cannot be sealed
	ErrEncryption = errors.New("vault: encryption failed")
)

// Vault encrypts and decrypts stored account passwords with a fixed symmetric
// key. Blob format is "iv:ciphertext", both hex-encoded, with a fresh IV per
// call.
type Vault struct {
	key       []byte
	ephemeral bool
}

// New creates a vault from a hex-encoded 32-byte key. When keyHex is empty a
// random per-process key is generated: the vault still works within this
// process lifetime, but anything it encrypts becomes unrecoverable after a
// restart. That risk is logged loudly rather than fixed silently - operators
// opted out of configuring a key.
func New(keyHex string, logger arbor.ILogger) (*Vault, error) {
	if keyHex == "" {
		key := make([]byte, keySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
		}
		if logger != nil {
			logger.Warn().Msg("No vault key configured - using an ephemeral key; encrypted passwords will NOT survive a restart")
		}
		return &Vault{key: key, ephemeral: true}, nil
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("vault: key is not valid hex: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("vault: key must be %d bytes, got %d", keySize, len(key))
	}
	return &Vault{key: key}, nil
}

// Ephemeral reports whether the vault runs on a generated per-process key
func (v *Vault) Ephemeral() bool {
	return v.ephemeral
}

// Encrypt seals a plaintext into an "iv:ciphertext" hex blob
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(ciphertext, []byte(plaintext))

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens an "iv:ciphertext" hex blob
func (v *Vault) Decrypt(blob string) (string, error) {
	parts := strings.SplitN(blob, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed blob", ErrDecryption)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: bad iv", ErrDecryption)
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrDecryption)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(plaintext, ciphertext)

	return string(plaintext), nil
}
