package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subflow/internal/archive"
	"subflow/internal/faults"
	"subflow/internal/journal"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
output_dir = %q
archive_dir = %q
work_dir = %q
log_dir = %q
history_db = %q

[translation]
api_key = "test-key-abcdef123456"
target_languages = ["zh", "ja"]
`,
		filepath.Join(base, "output"),
		filepath.Join(base, "archive"),
		filepath.Join(base, "work"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "history.db"),
	)
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	output, err := runCommand(t, "--config", path, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, path) {
		t.Errorf("output should mention written path, got %q", output)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Error("sample config missing [paths] section")
	}

	if _, err := runCommand(t, "--config", path, "config", "init"); err == nil {
		t.Error("second init should refuse to overwrite")
	}
}

func TestConfigShowMasksAPIKey(t *testing.T) {
	path := writeTestConfig(t)

	output, err := runCommand(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(output, "test-key-abcdef123456") {
		t.Error("api key should not appear verbatim in output")
	}
	if !strings.Contains(output, "test...3456") {
		t.Errorf("masked key missing from output:\n%s", output)
	}
	if !strings.Contains(output, "zh, ja") {
		t.Errorf("target languages missing from output:\n%s", output)
	}
	if !strings.Contains(output, path) {
		t.Error("resolved config path should be printed")
	}
}

func TestConfigValidate(t *testing.T) {
	path := writeTestConfig(t)

	output, err := runCommand(t, "--config", path, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(output, "is valid") {
		t.Errorf("expected validation confirmation, got:\n%s", output)
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("[pipeline]\nqueue_capacity = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := runCommand(t, "--config", bad, "config", "validate"); err == nil {
		t.Error("invalid config should fail validation")
	}
}

func TestFailuresCommandFiltersByCategory(t *testing.T) {
	path := writeTestConfig(t)

	// Seed the failure log the same way the pipeline does.
	base := filepath.Dir(path)
	log := journal.NewFailureLog(filepath.Join(base, "logs", "failures.log"), nil)
	records := []journal.FailureRecord{
		{BatchID: "batch1", ItemID: "vid001", SourceURL: "https://example.com/1", Phase: "fetch", Category: faults.Network, Message: "connection reset"},
		{BatchID: "batch1", ItemID: "vid002", SourceURL: "https://example.com/2", Phase: "detect", Category: faults.Auth, Message: "sign in required"},
	}
	for _, rec := range records {
		if err := log.Record(rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	output, err := runCommand(t, "--config", path, "failures")
	if err != nil {
		t.Fatalf("failures: %v", err)
	}
	if !strings.Contains(output, "vid001") || !strings.Contains(output, "vid002") {
		t.Errorf("unfiltered output should list both items:\n%s", output)
	}

	output, err = runCommand(t, "--config", path, "failures", "--category", "Auth")
	if err != nil {
		t.Fatalf("failures --category: %v", err)
	}
	if strings.Contains(output, "vid001") {
		t.Error("Auth filter should exclude the Network failure")
	}
	if !strings.Contains(output, "vid002") {
		t.Errorf("Auth filter should keep the Auth failure:\n%s", output)
	}

	if _, err := runCommand(t, "--config", path, "failures", "--category", "bogus"); err == nil {
		t.Error("unknown category should be rejected")
	}
}

func TestFailuresCommandEmptyLog(t *testing.T) {
	path := writeTestConfig(t)

	output, err := runCommand(t, "--config", path, "failures")
	if err != nil {
		t.Fatalf("failures: %v", err)
	}
	if !strings.Contains(output, "No failures recorded") {
		t.Errorf("expected empty-log message, got:\n%s", output)
	}
}

func TestHistoryCommandEmpty(t *testing.T) {
	path := writeTestConfig(t)

	output, err := runCommand(t, "--config", path, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(output, "No runs recorded yet") {
		t.Errorf("expected empty-history message, got:\n%s", output)
	}
}

func TestArchiveClearForgetsSource(t *testing.T) {
	path := writeTestConfig(t)
	archiveDir := filepath.Join(filepath.Dir(path), "archive")

	tracker := archive.NewTracker(archiveDir, nil)
	if err := tracker.MarkDone("UCchannel", "vid001"); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	output, err := runCommand(t, "--config", path, "archive", "path", "UCchannel")
	if err != nil {
		t.Fatalf("archive path: %v", err)
	}
	archivePath := strings.TrimSpace(output)
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("archive file should exist at printed path: %v", err)
	}

	if _, err := runCommand(t, "--config", path, "archive", "clear", "UCchannel"); err != nil {
		t.Fatalf("archive clear: %v", err)
	}
	if _, err := os.Stat(archivePath); !os.IsNotExist(err) {
		t.Error("archive file should be removed after clear")
	}
}

func TestRunRequiresSource(t *testing.T) {
	path := writeTestConfig(t)

	if _, err := runCommand(t, "--config", path, "run"); err == nil {
		t.Error("run without a source should fail argument validation")
	}
}

func TestMaskSecret(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "(not set)"},
		{"short", "****"},
		{"sk-or-v1-abcdef", "sk-o...cdef"},
	}
	for _, tc := range cases {
		if got := maskSecret(tc.in); got != tc.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
