// Package output lays down the final artifact set for a completed item:
// translated subtitle files, the optional summary, and a metadata sidecar.
// Every file lands via an atomic write, so readers never observe a partial
// artifact.
package output
