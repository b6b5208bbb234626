package credential

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"

	"github.com/mdiaz/mailsweep/internal/config"
)

// openKeyring returns a configured keyring instance for the service.
func openKeyring(service string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailsweep/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailsweep-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// MasterSecret resolves the vault master secret. The environment
// variable wins when set (containers, CI); otherwise the system keyring
// is consulted.
func MasterSecret(cfg config.VaultConfig) (string, error) {
	if cfg.EnvVar != "" {
		if v := os.Getenv(cfg.EnvVar); v != "" {
			return v, nil
		}
	}

	ring, err := openKeyring(cfg.Service)
	if err != nil {
		return "", err
	}

	item, err := ring.Get(cfg.SecretName)
	if err != nil {
		return "", fmt.Errorf("getting master secret %q: %w", cfg.SecretName, err)
	}
	return string(item.Data), nil
}

// SetMasterSecret stores the vault master secret in the system keyring.
func SetMasterSecret(cfg config.VaultConfig, value string) error {
	ring, err := openKeyring(cfg.Service)
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  cfg.SecretName,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting master secret %q: %w", cfg.SecretName, err)
	}
	return nil
}
