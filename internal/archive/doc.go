// Package archive tracks which items have already been fully processed for
// a logical source (channel, playlist, or URL batch). Each source gets its
// own archive file in the yt-dlp download-archive format, so completion
// state never leaks between unrelated sources.
package archive
