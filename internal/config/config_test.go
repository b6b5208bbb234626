package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Workers)
	}
	if cfg.UnsubscribeTimeoutSec != 5 {
		t.Errorf("unsubscribe timeout = %d, want 5", cfg.UnsubscribeTimeoutSec)
	}
	if cfg.Vault.EnvVar != "MAILSWEEP_MASTER_SECRET" {
		t.Errorf("vault env var = %q", cfg.Vault.EnvVar)
	}
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
db_path: /var/lib/mailsweep/mailsweep.db
workers: 8
imap_servers:
  fastmail: imap.fastmail.com:993
vault:
  service: custom-service
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/var/lib/mailsweep/mailsweep.db" {
		t.Errorf("db path = %q", cfg.DBPath)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Workers)
	}
	if cfg.IMAPServers["fastmail"] != "imap.fastmail.com:993" {
		t.Errorf("imap_servers = %v", cfg.IMAPServers)
	}
	if cfg.Vault.Service != "custom-service" {
		t.Errorf("vault service = %q", cfg.Vault.Service)
	}

	// Settings absent from the file keep their defaults.
	if cfg.UnsubscribeTimeoutSec != 5 {
		t.Errorf("unsubscribe timeout = %d, want default 5", cfg.UnsubscribeTimeoutSec)
	}
	if cfg.Vault.SecretName != "master-secret" {
		t.Errorf("vault secret name = %q, want default", cfg.Vault.SecretName)
	}
}
