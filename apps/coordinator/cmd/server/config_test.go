package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"streamlation/packages/backend/coordinator"
)

func TestLoadInitialConfig_EmptyPathReturnsDefaults(t *testing.T) {
	rc, err := loadInitialConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc != coordinator.DefaultRuntimeConfig() {
		t.Fatalf("expected defaults, got %+v", rc)
	}
}

func TestLoadInitialConfig_OverridesNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "target_lang: es\nbatch_size: 8\ndebounce_ms: 250\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	rc, err := loadInitialConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.TargetLang != "es" {
		t.Fatalf("expected target_lang es, got %s", rc.TargetLang)
	}
	if rc.BatchSize != 8 {
		t.Fatalf("expected batch_size 8, got %d", rc.BatchSize)
	}
	if rc.DebounceMs != 250*time.Millisecond {
		t.Fatalf("expected debounce 250ms, got %s", rc.DebounceMs)
	}
	if rc.SourceLang != coordinator.DefaultSourceLang {
		t.Fatalf("expected unset field to keep default, got %s", rc.SourceLang)
	}
}

func TestLoadInitialConfig_MissingFileErrors(t *testing.T) {
	_, err := loadInitialConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
