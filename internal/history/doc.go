// Package history persists one record per pipeline run in a local SQLite
// database: batch id, source, outcome counts, and duration. The CLI reads
// it back for the history command.
package history
