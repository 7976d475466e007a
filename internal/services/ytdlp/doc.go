// Package ytdlp wraps the yt-dlp CLI for source listing, subtitle probing,
// and subtitle downloads. Process failures are classified from stderr into
// fault categories so the pipeline can decide what to retry.
package ytdlp
