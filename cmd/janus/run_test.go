package main

import (
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/janus/pkg/config"
)

func TestLoadCredentialsMergesFileAndInline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.txt")
	if err := os.WriteFile(path, []byte("alice=sk-abc123\n"), 0o600); err != nil {
		t.Fatalf("writing credentials file: %v", err)
	}

	store, err := loadCredentials(&config.CredentialsConfig{
		File:   path,
		Inline: map[string]string{"bob": "sk-xyz789"},
	})
	if err != nil {
		t.Fatalf("loadCredentials failed: %v", err)
	}

	if store.Len() != 2 {
		t.Errorf("store has %d entries, want 2", store.Len())
	}
	if identity, ok := store.Lookup("sk-xyz789"); !ok || identity != "bob" {
		t.Errorf("inline entry lookup = %q/%v", identity, ok)
	}
}

func TestLoadCredentialsRejectsDuplicateSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.txt")
	if err := os.WriteFile(path, []byte("alice=sk-abc123\n"), 0o600); err != nil {
		t.Fatalf("writing credentials file: %v", err)
	}

	_, err := loadCredentials(&config.CredentialsConfig{
		File:   path,
		Inline: map[string]string{"mallory": "sk-abc123"},
	})
	if err == nil {
		t.Error("duplicate secret across sources accepted, want error")
	}
}

func TestLoadCredentialsRequiresEntries(t *testing.T) {
	if _, err := loadCredentials(&config.CredentialsConfig{}); err == nil {
		t.Error("empty credential config accepted, want error")
	}
}

func TestOpenUsageStorage(t *testing.T) {
	cfg := &config.UsageConfig{Backend: "memory"}
	store, err := openUsageStorage(cfg)
	if err != nil {
		t.Fatalf("memory backend failed: %v", err)
	}
	store.Close()

	if _, err := openUsageStorage(&config.UsageConfig{Backend: "postgres"}); err == nil {
		t.Error("unsupported backend accepted, want error")
	}
}
