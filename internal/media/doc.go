// Package media defines the per-phase result payloads carried by a work
// item: what was detected about a video, what was downloaded, and where the
// produced artifacts live.
package media
