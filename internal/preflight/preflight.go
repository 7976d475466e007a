package preflight

import (
	"context"

	"subflow/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the floor for usable space on the work and output
// filesystems. Subtitle artifacts are small; this guards against running on
// an already-full disk.
const minFreeBytes = 1 << 30

// RunAll executes every applicable check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir),
		CheckDiskSpace("Work disk space", cfg.Paths.WorkDir, minFreeBytes),
		CheckDiskSpace("Output disk space", cfg.Paths.OutputDir, minFreeBytes),
		CheckBinary("yt-dlp", cfg.YtDlp.Binary),
	}

	results = append(results, CheckLLM(ctx, "Translation LLM", cfg.Translation.LLM))
	if cfg.Summary.Enabled && summaryUsesDistinctLLM(cfg) {
		results = append(results, CheckLLM(ctx, "Summary LLM", cfg.Summary.LLM))
	}
	return results
}

// AllPassed reports whether every check succeeded.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// summaryUsesDistinctLLM reports whether the summary endpoint differs from
// the translation one; when identical, one health check covers both.
func summaryUsesDistinctLLM(cfg *config.Config) bool {
	return cfg.Summary.APIKey != cfg.Translation.APIKey ||
		cfg.Summary.BaseURL != cfg.Translation.BaseURL
}
