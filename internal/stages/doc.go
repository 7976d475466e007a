// Package stages provides the five phase handlers: detect probes for
// subtitle tracks, fetch downloads the source track, translate produces one
// variant per target language, summarize writes an optional digest, and
// publish lays down the final artifacts. Handlers accept narrow service
// interfaces so tests can stub the CLI and HTTP clients.
package stages
