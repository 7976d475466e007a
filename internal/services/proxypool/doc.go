// Package proxypool rotates outbound proxies for yt-dlp calls, parking a
// proxy on a cooldown after a network failure so one bad exit does not
// poison every worker.
package proxypool
