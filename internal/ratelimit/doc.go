// Package ratelimit provides an in-process token bucket used to pace
// outbound LLM requests across all translate and summarize workers.
package ratelimit
