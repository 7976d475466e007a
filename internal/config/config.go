package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	ArchiveDir string `toml:"archive_dir"`
	WorkDir    string `toml:"work_dir"`
	LogDir     string `toml:"log_dir"`
	HistoryDB  string `toml:"history_db"`
}

// Pipeline contains scheduler tuning: queue capacity, per-phase worker
// counts, retry budget, and cancellation timing.
type Pipeline struct {
	QueueCapacity        int `toml:"queue_capacity"`
	DetectWorkers        int `toml:"detect_workers"`
	FetchWorkers         int `toml:"fetch_workers"`
	TranslateWorkers     int `toml:"translate_workers"`
	SummarizeWorkers     int `toml:"summarize_workers"`
	PublishWorkers       int `toml:"publish_workers"`
	MaxAttempts          int `toml:"max_attempts"`
	RetryBaseDelayMS     int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS      int `toml:"retry_max_delay_ms"`
	StopTimeoutSeconds   int `toml:"stop_timeout_seconds"`
	LLMRequestsPerMinute int `toml:"llm_requests_per_minute"`
}

// YtDlp contains configuration for the external yt-dlp tool.
type YtDlp struct {
	Binary                 string   `toml:"binary"`
	ProbeTimeoutSeconds    int      `toml:"probe_timeout_seconds"`
	DownloadTimeoutSeconds int      `toml:"download_timeout_seconds"`
	CookiesFile            string   `toml:"cookies_file"`
	Proxies                []string `toml:"proxies"`
	ProxyCooldownSeconds   int      `toml:"proxy_cooldown_seconds"`
}

// LLM contains connection settings for an OpenAI-compatible chat endpoint.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation configures the translate phase.
type Translation struct {
	LLM
	TargetLanguages []string `toml:"target_languages"`
}

// Summary configures the optional summarize phase.
type Summary struct {
	LLM
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for subflow.
//
// Configuration sections by subsystem:
//   - Paths: output, archive, scratch, log directories and history database
//   - Pipeline: queue capacity, per-phase concurrency, retry and stop timing
//   - YtDlp: external downloader binary, timeouts, proxies, cookies
//   - Translation: LLM connection and target languages
//   - Summary: optional summary LLM
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Pipeline    Pipeline    `toml:"pipeline"`
	YtDlp       YtDlp       `toml:"ytdlp"`
	Translation Translation `toml:"translation"`
	Summary     Summary     `toml:"summary"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/subflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file actually existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates every configured directory that does not exist
// yet, including the history database's parent.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.OutputDir,
		c.Paths.ArchiveDir,
		c.Paths.WorkDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.HistoryDB),
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}

	c.YtDlp.Binary = strings.TrimSpace(c.YtDlp.Binary)
	if c.YtDlp.Binary == "" {
		c.YtDlp.Binary = defaultYtDlpBinary
	}
	if c.YtDlp.CookiesFile != "" {
		if c.YtDlp.CookiesFile, err = expandPath(c.YtDlp.CookiesFile); err != nil {
			return fmt.Errorf("ytdlp.cookies_file: %w", err)
		}
	}

	c.Translation.BaseURL = strings.TrimSpace(c.Translation.BaseURL)
	if c.Translation.BaseURL == "" {
		c.Translation.BaseURL = defaultLLMBaseURL
	}
	c.Summary.BaseURL = strings.TrimSpace(c.Summary.BaseURL)
	if c.Summary.BaseURL == "" {
		c.Summary.BaseURL = c.Translation.BaseURL
	}
	if strings.TrimSpace(c.Summary.APIKey) == "" {
		c.Summary.APIKey = c.Translation.APIKey
	}
	if strings.TrimSpace(c.Summary.Model) == "" {
		c.Summary.Model = c.Translation.Model
	}

	normalized := make([]string, 0, len(c.Translation.TargetLanguages))
	for _, lang := range c.Translation.TargetLanguages {
		if trimmed := strings.TrimSpace(lang); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	c.Translation.TargetLanguages = normalized

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return abs, nil
}
