// Package journal provides the append-only bookkeeping files shared by all
// pipeline workers: the failure log and, through AppendWriter, any other
// line-oriented record file. Appends are serialized per target path with an
// in-process mutex plus an OS file lock so concurrent workers (and
// concurrent subflow processes) never interleave partial lines.
package journal
