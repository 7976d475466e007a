package ytdlp

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"subflow/internal/faults"
)

// classify maps a yt-dlp process failure to a fault category using the
// stderr tail. yt-dlp has no structured error output, so this is pattern
// matching against its known message vocabulary.
func classify(op, stderr string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return faults.Wrap(faults.Cancelled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return faults.Wrap(faults.Timeout, op+": timed out", err)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return faults.Wrap(faults.InvalidInput, op+": yt-dlp binary not found", err)
	}

	lower := strings.ToLower(stderr)
	tail := lastLines(stderr, 3)
	switch {
	case containsAny(lower, "429", "rate-limit", "rate limit", "too many requests"):
		return faults.RateLimited(op+": rate limited: "+tail, 0, err)
	case containsAny(lower, "sign in to confirm", "private video", "members-only",
		"login required", "account cookies", "http error 403", "unauthorized"):
		return faults.Wrap(faults.Auth, op+": access denied: "+tail, err)
	case containsAny(lower, "video unavailable", "has been removed", "no subtitles",
		"subtitles not available", "this live event", "copyright"):
		return faults.Wrap(faults.Content, op+": "+tail, err)
	case containsAny(lower, "unsupported url", "is not a valid url", "invalid url"):
		return faults.Wrap(faults.InvalidInput, op+": "+tail, err)
	case containsAny(lower, "timed out", "timeout"):
		return faults.Wrap(faults.Timeout, op+": "+tail, err)
	case containsAny(lower, "unable to connect", "connection reset", "connection refused",
		"temporary failure", "network is unreachable", "getaddrinfo", "unable to download"):
		return faults.Wrap(faults.Network, op+": "+tail, err)
	default:
		return faults.Wrap(faults.ExternalService, op+": "+tail, err)
	}
}

// networkish reports whether the failure should count against the proxy in
// use rather than the video itself.
func networkish(err error) bool {
	switch faults.CategoryOf(err) {
	case faults.Network, faults.Timeout, faults.RateLimit:
		return true
	default:
		return false
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	joined := strings.Join(lines, " | ")
	if joined == "" {
		return "process failed"
	}
	return joined
}
