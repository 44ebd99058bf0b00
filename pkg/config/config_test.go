package config

import (
	"encoding/base64"
	"testing"
)

func TestVaultKeyBytesRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cfg := VaultConfig{Key: base64.StdEncoding.EncodeToString(key)}

	got, err := cfg.KeyBytes()
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if len(got) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(got))
	}
}

func TestVaultKeyBytesRejectsBadInput(t *testing.T) {
	if _, err := (VaultConfig{Key: "not-base64!!"}).KeyBytes(); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := (VaultConfig{Key: short}).KeyBytes(); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	if !(AppConfig{Env: "DEV"}).IsDev() {
		t.Fatalf("expected dev")
	}
	if !(AppConfig{Env: "prod"}).IsProd() {
		t.Fatalf("expected prod")
	}
	if (AppConfig{Env: "staging"}).IsProd() {
		t.Fatalf("staging is not prod")
	}
}
