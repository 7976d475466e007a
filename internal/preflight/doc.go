// Package preflight verifies the environment before a run starts: directory
// access, free disk space, the yt-dlp binary, and LLM API health. A failed
// check aborts the run before any item is submitted.
package preflight
