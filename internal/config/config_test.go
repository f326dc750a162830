package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "easel.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "version: \"1.0\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := *cfg.Session.IterationLength; got != 900 {
		t.Errorf("iteration_length default = %d, want 900", got)
	}
	if got := *cfg.Session.IterationCount; got != 5 {
		t.Errorf("iteration_count default = %d, want 5", got)
	}
	if got := *cfg.Paint.Default; got != 200 {
		t.Errorf("paint.default default = %d, want 200", got)
	}
	if got := *cfg.Paint.IterationPaint; got != 125 {
		t.Errorf("paint.iteration_paint default = %d, want 125", got)
	}
	if got := cfg.Paint.ReplenishPolicy; got != "topup" {
		t.Errorf("paint.replenish_policy default = %q, want topup", got)
	}
	if got := *cfg.Ledger.Capacity; got != 5 {
		t.Errorf("ledger.capacity default = %d, want 5", got)
	}
	if got := *cfg.Ledger.ConflictRadius; got != 3.0 {
		t.Errorf("ledger.conflict_radius default = %v, want 3", got)
	}
	if got := *cfg.Prompt.MaxWords; got != 5 {
		t.Errorf("prompt.max_words default = %d, want 5", got)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
session:
  iteration_length: 60
  iteration_count: 3
  consensus_minimum: 4
paint:
  default: 500
  replenish_policy: reset
ledger:
  capacity: 8
  conflict_radius: 2.5
captcha:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := *cfg.Session.IterationLength; got != 60 {
		t.Errorf("iteration_length = %d, want 60", got)
	}
	if got := *cfg.Session.ConsensusMinimum; got != 4 {
		t.Errorf("consensus_minimum = %d, want 4", got)
	}
	if got := cfg.Paint.ReplenishPolicy; got != "reset" {
		t.Errorf("replenish_policy = %q, want reset", got)
	}
	if got := *cfg.Ledger.ConflictRadius; got != 2.5 {
		t.Errorf("conflict_radius = %v, want 2.5", got)
	}
	if !cfg.Captcha.Enabled {
		t.Error("captcha.enabled = false, want true")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		errorContains string
	}{
		{
			name:          "missing version",
			content:       "session:\n  iteration_count: 5\n",
			errorContains: "unsupported version",
		},
		{
			name:          "wrong version",
			content:       "version: \"2.0\"\n",
			errorContains: "unsupported version",
		},
		{
			name:          "iteration count too small",
			content:       "version: \"1.0\"\nsession:\n  iteration_count: 1\n",
			errorContains: "iteration_count",
		},
		{
			name:          "negative paint",
			content:       "version: \"1.0\"\npaint:\n  default: -1\n",
			errorContains: "paint.default",
		},
		{
			name:          "bad replenish policy",
			content:       "version: \"1.0\"\npaint:\n  replenish_policy: lottery\n",
			errorContains: "replenish_policy",
		},
		{
			name:          "zero conflict radius",
			content:       "version: \"1.0\"\nledger:\n  conflict_radius: 0\n",
			errorContains: "conflict_radius",
		},
		{
			name:          "oversized palette",
			content:       "version: \"1.0\"\nsession:\n  palette_size: 300\n",
			errorContains: "palette_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errorContains)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Version != "1.0" {
		t.Errorf("version = %q, want 1.0", cfg.Version)
	}
	if got := *cfg.Session.ConsensusMinimum; got != 2 {
		t.Errorf("consensus_minimum = %d, want 2", got)
	}
}
