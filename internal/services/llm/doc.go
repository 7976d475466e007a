// Package llm wraps an OpenAI-compatible chat completion API for the
// translate and summarize phases. The client performs exactly one HTTP
// attempt per call and reports failures as classified errors; retry
// scheduling belongs to the pipeline, not the transport.
package llm
