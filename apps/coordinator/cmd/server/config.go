package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"streamlation/packages/backend/coordinator"
)

// fileConfig is the on-disk shape of a launch-time config file overriding
// coordinator.DefaultRuntimeConfig for every new session this process
// creates. All fields are optional; an unset field keeps the built-in
// default.
type fileConfig struct {
	SourceLang             *string `yaml:"source_lang"`
	TargetLang             *string `yaml:"target_lang"`
	DebounceMs             *int64  `yaml:"debounce_ms"`
	BatchSize              *int    `yaml:"batch_size"`
	BatchTimeoutMs         *int64  `yaml:"batch_timeout_ms"`
	SyncDisplayMode        *bool   `yaml:"sync_display_mode"`
	InterimDebounceEnabled *bool   `yaml:"interim_debounce_enabled"`
}

// loadInitialConfig reads path, if non-empty, and applies it on top of
// coordinator.DefaultRuntimeConfig. An empty path returns the defaults
// unmodified.
func loadInitialConfig(path string) (coordinator.RuntimeConfig, error) {
	rc := coordinator.DefaultRuntimeConfig()
	if path == "" {
		return rc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rc, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return rc, fmt.Errorf("config: invalid YAML in %s: %w", path, err)
	}

	if fc.SourceLang != nil {
		rc.SourceLang = *fc.SourceLang
	}
	if fc.TargetLang != nil {
		rc.TargetLang = *fc.TargetLang
	}
	if fc.DebounceMs != nil {
		rc.DebounceMs = time.Duration(*fc.DebounceMs) * time.Millisecond
	}
	if fc.BatchSize != nil {
		rc.BatchSize = *fc.BatchSize
	}
	if fc.BatchTimeoutMs != nil {
		rc.BatchTimeoutMs = time.Duration(*fc.BatchTimeoutMs) * time.Millisecond
	}
	if fc.SyncDisplayMode != nil {
		rc.SyncDisplayMode = *fc.SyncDisplayMode
	}
	if fc.InterimDebounceEnabled != nil {
		rc.InterimDebounceEnabled = *fc.InterimDebounceEnabled
	}
	return rc, nil
}
