// Package pipeline implements the staged scheduler: five bounded queues
// (detect, fetch, translate, summarize, publish) connected in a fixed order,
// each drained by its own worker pool. Enqueueing into a full queue blocks,
// so a slow phase applies backpressure all the way back to submission.
//
// Items flow strictly forward. A handler outcome is one of: success (forward
// to the next phase), skip, failure after retries, or cancellation. All four
// are terminal except success at a non-final phase. Cancellation is
// cooperative: a shared Signal is checked between items, between retry
// attempts, and during backoff sleeps.
package pipeline
