package provider

import (
	"context"
	"fmt"

	"tars/internal/logging"
)

// DegradedMessage is returned when every backend is unreachable.
const DegradedMessage = "*Cue light goes dark* All my neural pathways are offline. Check your connections, slick."

// Router dispatches generation to a primary backend and falls back across
// the remaining ones when it fails at the transport level. Router methods
// never return an error: exhausting all backends yields DegradedMessage.
type Router struct {
	primary   Handler
	fallbacks []Handler
	log       *logging.Logger
}

// NewRouter builds a router over a primary handler and an ordered fallback
// chain.
func NewRouter(primary Handler, fallbacks []Handler) *Router {
	return &Router{
		primary:   primary,
		fallbacks: fallbacks,
		log:       logging.Get(logging.CategoryProvider),
	}
}

// Primary returns the primary backend.
func (r *Router) Primary() Handler { return r.primary }

// Order returns backend kinds in dispatch order.
func (r *Router) Order() []Kind {
	out := []Kind{r.primary.Kind()}
	for _, h := range r.fallbacks {
		out = append(out, h.Kind())
	}
	return out
}

func (r *Router) handlers() []Handler {
	return append([]Handler{r.primary}, r.fallbacks...)
}

// Generate tries each backend in order and returns the first success.
func (r *Router) Generate(ctx context.Context, system, user string, history []Turn) string {
	for _, h := range r.handlers() {
		resp, err := h.Generate(ctx, system, user, history)
		if err == nil {
			return resp
		}
		r.log.Warn("backend %s failed, falling back: %v", h.Kind(), err)
	}
	r.log.Error("all backends exhausted")
	return DegradedMessage
}

// GenerateStream streams from the first backend that produces output.
// Fallback happens only before the first chunk; once a backend has started
// talking the stream is committed, and a later failure is reported as one
// final in-character chunk.
func (r *Router) GenerateStream(ctx context.Context, system, user string, history []Turn) <-chan string {
	out := make(chan string, 100)

	go func() {
		defer close(out)

		for _, h := range r.handlers() {
			content, errs := h.GenerateStream(ctx, system, user, history)

			delivered := false
			for chunk := range content {
				delivered = true
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}

			// Channels are closed; the buffered error channel now holds
			// the verdict.
			err := <-errs
			if err == nil {
				return
			}
			if delivered {
				r.log.Error("backend %s failed mid-stream: %v", h.Kind(), err)
				out <- fmt.Sprintf("\n%s", snagReply(err.Error()))
				return
			}
			r.log.Warn("backend %s failed before streaming, falling back: %v", h.Kind(), err)
		}

		r.log.Error("all backends exhausted for stream")
		out <- DegradedMessage
	}()

	return out
}
