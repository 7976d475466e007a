package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		problems = append(problems, "paths.output_dir is required")
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		problems = append(problems, "paths.archive_dir is required")
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		problems = append(problems, "paths.work_dir is required")
	}

	if c.Pipeline.QueueCapacity < 1 {
		problems = append(problems, "pipeline.queue_capacity must be at least 1")
	}
	for _, entry := range []struct {
		name  string
		value int
	}{
		{"pipeline.detect_workers", c.Pipeline.DetectWorkers},
		{"pipeline.fetch_workers", c.Pipeline.FetchWorkers},
		{"pipeline.translate_workers", c.Pipeline.TranslateWorkers},
		{"pipeline.summarize_workers", c.Pipeline.SummarizeWorkers},
		{"pipeline.publish_workers", c.Pipeline.PublishWorkers},
	} {
		if entry.value < 1 {
			problems = append(problems, fmt.Sprintf("%s must be at least 1", entry.name))
		}
	}
	if c.Pipeline.MaxAttempts < 1 {
		problems = append(problems, "pipeline.max_attempts must be at least 1")
	}
	if c.Pipeline.RetryBaseDelayMS < 0 || c.Pipeline.RetryMaxDelayMS < 0 {
		problems = append(problems, "pipeline retry delays must not be negative")
	}
	if c.Pipeline.RetryMaxDelayMS > 0 && c.Pipeline.RetryBaseDelayMS > c.Pipeline.RetryMaxDelayMS {
		problems = append(problems, "pipeline.retry_base_delay_ms must not exceed pipeline.retry_max_delay_ms")
	}
	if c.Pipeline.StopTimeoutSeconds < 1 {
		problems = append(problems, "pipeline.stop_timeout_seconds must be at least 1")
	}

	if len(c.Translation.TargetLanguages) == 0 {
		problems = append(problems, "translation.target_languages must name at least one language")
	}

	if c.Summary.Enabled && strings.TrimSpace(c.Summary.APIKey) == "" {
		problems = append(problems, "summary.api_key (or translation.api_key) is required when summary is enabled")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
