package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to be reported as absent")
	}
	if resolved != path {
		t.Fatalf("resolved path %q, want %q", resolved, path)
	}
	if cfg.Pipeline.QueueCapacity != defaultQueueCapacity {
		t.Fatalf("queue capacity %d, want default %d", cfg.Pipeline.QueueCapacity, defaultQueueCapacity)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
output_dir = "` + filepath.Join(dir, "out") + `"

[pipeline]
translate_workers = 2

[translation]
api_key = "k"
model = "test-model"
target_languages = [" zh ", "", "ja"]

[summary]
enabled = true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Pipeline.TranslateWorkers != 2 {
		t.Fatalf("translate workers %d, want 2", cfg.Pipeline.TranslateWorkers)
	}
	if got := cfg.Translation.TargetLanguages; len(got) != 2 || got[0] != "zh" || got[1] != "ja" {
		t.Fatalf("target languages %v", got)
	}
	// Summary inherits translation credentials when unset.
	if cfg.Summary.APIKey != "k" || cfg.Summary.Model != "test-model" {
		t.Fatalf("summary fallback not applied: %+v", cfg.Summary)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Pipeline.QueueCapacity = 0
	cfg.Pipeline.DetectWorkers = -1
	cfg.Translation.TargetLanguages = nil
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, fragment := range []string{"queue_capacity", "detect_workers", "target_languages"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("validation error missing %q: %v", fragment, err)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected overwrite to be refused")
	}
}
