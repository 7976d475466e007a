// Package config loads, normalizes, and validates the TOML configuration
// that drives subflow: filesystem layout, per-phase concurrency and retry
// budgets, yt-dlp settings, and LLM connection settings.
package config
