package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"subflow/internal/faults"
	"subflow/internal/media"
	"subflow/internal/services/proxypool"
)

const (
	defaultProbeTimeout    = 60 * time.Second
	defaultDownloadTimeout = 300 * time.Second
)

// Config captures the yt-dlp invocation settings.
type Config struct {
	Binary                 string
	CookiesFile            string
	ProbeTimeoutSeconds    int
	DownloadTimeoutSeconds int
}

// Client wraps yt-dlp CLI interactions. Safe for concurrent use.
type Client struct {
	binary          string
	cookiesFile     string
	probeTimeout    time.Duration
	downloadTimeout time.Duration
	exec            Executor
	proxies         *proxypool.Pool
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithProxyPool routes calls through a rotating proxy pool.
func WithProxyPool(pool *proxypool.Pool) Option {
	return func(c *Client) {
		c.proxies = pool
	}
}

// New constructs a yt-dlp client.
func New(cfg Config, opts ...Option) (*Client, error) {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:          binary,
		cookiesFile:     strings.TrimSpace(cfg.CookiesFile),
		probeTimeout:    defaultProbeTimeout,
		downloadTimeout: defaultDownloadTimeout,
		exec:            commandExecutor{},
	}
	if cfg.ProbeTimeoutSeconds > 0 {
		client.probeTimeout = time.Duration(cfg.ProbeTimeoutSeconds) * time.Second
	}
	if cfg.DownloadTimeoutSeconds > 0 {
		client.downloadTimeout = time.Duration(cfg.DownloadTimeoutSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ListSource expands a channel, playlist, or single-video URL into the
// videos it contains, without fetching per-video metadata.
func (c *Client) ListSource(ctx context.Context, sourceURL string) ([]media.Video, error) {
	args := []string{"--flat-playlist", "--dump-json", "--no-warnings", "--ignore-no-formats-error"}
	args = append(args, sourceURL)

	var videos []media.Video
	err := c.run(ctx, c.probeTimeout, "ytdlp list", args, func(line string) {
		var entry struct {
			ID         string `json:"id"`
			Title      string `json:"title"`
			URL        string `json:"url"`
			WebpageURL string `json:"webpage_url"`
			ChannelID  string `json:"channel_id"`
			Channel    string `json:"channel"`
			Uploader   string `json:"uploader"`
			UploaderID string `json:"uploader_id"`
		}
		if json.Unmarshal([]byte(line), &entry) != nil || entry.ID == "" {
			return
		}
		url := entry.WebpageURL
		if url == "" {
			url = entry.URL
		}
		channelID := entry.ChannelID
		if channelID == "" {
			channelID = entry.UploaderID
		}
		channelName := entry.Channel
		if channelName == "" {
			channelName = entry.Uploader
		}
		videos = append(videos, media.Video{
			ID:          entry.ID,
			URL:         url,
			Title:       entry.Title,
			ChannelID:   channelID,
			ChannelName: channelName,
		})
	})
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, faults.Errorf(faults.Content, "ytdlp list: no videos found at %s", sourceURL)
	}
	return videos, nil
}

// Probe fetches one video's metadata and reports which subtitle tracks
// exist, manual tracks taking precedence over auto-generated captions.
func (c *Client) Probe(ctx context.Context, videoURL string) (media.Video, media.Detection, error) {
	args := []string{"--dump-json", "--skip-download", "--no-warnings", videoURL}

	var payload []byte
	err := c.run(ctx, c.probeTimeout, "ytdlp probe", args, func(line string) {
		if payload == nil && strings.HasPrefix(strings.TrimSpace(line), "{") {
			payload = []byte(line)
		}
	})
	if err != nil {
		return media.Video{}, media.Detection{}, err
	}
	if payload == nil {
		return media.Video{}, media.Detection{}, faults.New(faults.Parse, "ytdlp probe: no metadata emitted")
	}

	var meta struct {
		ID                string                     `json:"id"`
		Title             string                     `json:"title"`
		WebpageURL        string                     `json:"webpage_url"`
		ChannelID         string                     `json:"channel_id"`
		Channel           string                     `json:"channel"`
		Subtitles         map[string]json.RawMessage `json:"subtitles"`
		AutomaticCaptions map[string]json.RawMessage `json:"automatic_captions"`
	}
	if err := json.Unmarshal(payload, &meta); err != nil {
		return media.Video{}, media.Detection{}, faults.Wrap(faults.Parse, "ytdlp probe: decode metadata", err)
	}

	video := media.Video{
		ID:          meta.ID,
		URL:         meta.WebpageURL,
		Title:       meta.Title,
		ChannelID:   meta.ChannelID,
		ChannelName: meta.Channel,
	}
	if video.URL == "" {
		video.URL = videoURL
	}

	manual := sortedKeys(meta.Subtitles)
	detection := media.Detection{}
	switch {
	case len(manual) > 0:
		detection.HasSubtitles = true
		detection.Languages = manual
	case len(meta.AutomaticCaptions) > 0:
		detection.HasSubtitles = true
		detection.Automatic = true
		detection.Languages = sortedKeys(meta.AutomaticCaptions)
	}
	return video, detection, nil
}

// DownloadSubtitles fetches one subtitle track into destDir, converted to
// SRT, and returns the downloaded file path.
func (c *Client) DownloadSubtitles(ctx context.Context, videoURL, lang, destDir string, automatic bool) (string, error) {
	subsFlag := "--write-subs"
	if automatic {
		subsFlag = "--write-auto-subs"
	}
	args := []string{
		"--skip-download",
		subsFlag,
		"--sub-langs", lang,
		"--convert-subs", "srt",
		"--no-warnings",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
		videoURL,
	}
	if err := c.run(ctx, c.downloadTimeout, "ytdlp download", args, nil); err != nil {
		return "", err
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "*.srt"))
	if err != nil {
		return "", faults.Wrap(faults.FileIO, "ytdlp download: scan destination", err)
	}
	if len(matches) == 0 {
		return "", faults.Errorf(faults.Content, "ytdlp download: no %s subtitle produced", lang)
	}
	// Prefer the exact language suffix when several tracks landed.
	for _, match := range matches {
		if strings.Contains(filepath.Base(match), "."+lang+".") {
			return match, nil
		}
	}
	sort.Strings(matches)
	return matches[0], nil
}

// run executes yt-dlp with shared flags (cookies, proxy) and a bounded
// timeout, reporting proxy health back to the pool.
func (c *Client) run(ctx context.Context, timeout time.Duration, op string, args []string, onStdout func(string)) error {
	full := make([]string, 0, len(args)+4)
	if c.cookiesFile != "" {
		full = append(full, "--cookies", c.cookiesFile)
	}
	proxy := c.proxies.Next()
	if proxy != "" {
		full = append(full, "--proxy", proxy)
	}
	full = append(full, args...)

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stderr, err := c.exec.Run(runCtx, c.binary, full, onStdout)
	classified := classify(op, stderr, err)
	if proxy != "" {
		if classified != nil && networkish(classified) {
			c.proxies.MarkFailed(proxy)
		} else {
			c.proxies.MarkHealthy(proxy)
		}
	}
	return classified
}

func sortedKeys(m map[string]json.RawMessage) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
