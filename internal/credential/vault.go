package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters; interactive-grade since encryption happens once
// per account link, not per scan.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1

	saltSize = 16
	keySize  = 32
)

var ErrEmptyMasterSecret = errors.New("master secret is empty")

// Vault performs symmetric encryption of mailbox app passwords. Each
// Encrypt call derives a fresh key from the master secret with a random
// scrypt salt and seals the plaintext with AES-GCM; the salt and nonce
// travel with the ciphertext so Decrypt only needs the blob.
type Vault struct {
	master []byte
}

// NewVault creates a vault keyed by the given master secret.
func NewVault(masterSecret string) (*Vault, error) {
	if masterSecret == "" {
		return nil, ErrEmptyMasterSecret
	}
	return &Vault{master: []byte(masterSecret)}, nil
}

// Encrypt seals plaintext and returns salt || nonce || ciphertext.
func (v *Vault) Encrypt(plaintext string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	blob := make([]byte, 0, saltSize+gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, []byte(plaintext), nil)
	return blob, nil
}

// Decrypt opens a blob produced by Encrypt and returns the plaintext.
func (v *Vault) Decrypt(blob []byte) (string, error) {
	if len(blob) < saltSize {
		return "", errors.New("encrypted blob too short")
	}
	salt, rest := blob[:saltSize], blob[saltSize:]

	gcm, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	if len(rest) < gcm.NonceSize() {
		return "", errors.New("encrypted blob too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting credential: %w", err)
	}
	return string(plaintext), nil
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(v.master, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return gcm, nil
}
