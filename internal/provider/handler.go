// Package provider implements the LLM backends TARS can speak through and
// the router that falls back across them when one is unreachable.
package provider

import (
	"context"
	"fmt"
)

// Turn is one prior exchange passed to a backend as chat context.
type Turn struct {
	Role    string // user or assistant
	Content string
}

// Handler is a single LLM backend. Transport-level failures (connect,
// non-200 status, malformed response) are returned as errors so the Router
// can fall back. Errors the API reports in-band on a successful HTTP
// exchange are folded into an in-character reply instead.
type Handler interface {
	// Generate produces one complete reply to the user message.
	Generate(ctx context.Context, system, user string, history []Turn) (string, error)

	// GenerateStream produces incremental reply chunks. Both channels are
	// closed when the stream ends; the error channel carries at most one
	// value.
	GenerateStream(ctx context.Context, system, user string, history []Turn) (<-chan string, <-chan error)

	// Kind identifies the backend.
	Kind() Kind

	// Model returns the configured model name.
	Model() string
}

// snagReply wraps a backend-reported problem in TARS's voice. Callers
// return it with a nil error: the turn succeeded, the content is an apology.
func snagReply(detail string) string {
	return fmt.Sprintf("*Cue light flickers* My circuits hit a snag: %s", detail)
}
