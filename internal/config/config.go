package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// VaultConfig holds settings for the credential vault.
type VaultConfig struct {
	// Service is the keyring service name the master secret lives under.
	Service string `mapstructure:"service" yaml:"service"`

	// SecretName is the keyring item key for the master secret.
	SecretName string `mapstructure:"secret_name" yaml:"secret_name"`

	// EnvVar, when set in the environment, overrides the keyring lookup.
	EnvVar string `mapstructure:"env_var" yaml:"env_var"`
}

// Config is the top-level application configuration.
type Config struct {
	// DBPath is the SQLite database file path.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// Workers is the size of the background job worker pool.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// UnsubscribeTimeoutSec bounds each outbound unsubscribe request.
	UnsubscribeTimeoutSec int `mapstructure:"unsubscribe_timeout_sec" yaml:"unsubscribe_timeout_sec"`

	// IMAPServers maps a mailbox provider domain (e.g. "gmail") to the
	// IMAP endpoint to dial. Entries here extend the built-in map.
	IMAPServers map[string]string `mapstructure:"imap_servers" yaml:"imap_servers"`

	Vault VaultConfig `mapstructure:"vault" yaml:"vault"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailsweep/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailsweep", "config.yaml")
}

func defaultConfig() *Config {
	return &Config{
		DBPath:                filepath.Join(".", "mailsweep.db"),
		Workers:               4,
		UnsubscribeTimeoutSec: 5,
		IMAPServers:           map[string]string{},
		Vault: VaultConfig{
			Service:    "mailsweep",
			SecretName: "master-secret",
			EnvVar:     "MAILSWEEP_MASTER_SECRET",
		},
	}
}

// Load reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("db_path", filepath.Join(".", "mailsweep.db"))
	v.SetDefault("workers", 4)
	v.SetDefault("unsubscribe_timeout_sec", 5)
	v.SetDefault("vault.service", "mailsweep")
	v.SetDefault("vault.secret_name", "master-secret")
	v.SetDefault("vault.env_var", "MAILSWEEP_MASTER_SECRET")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
