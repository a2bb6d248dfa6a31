// Package requestid carries a correlation id through a context. HTTP requests
// get one from the X-Request-ID header, background work such as a timer
// firing gets a fresh one.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// MaxLen bounds ids accepted from callers.
const MaxLen = 64

type ctxKey struct{}

func New() string {
	return uuid.NewString()
}

// Valid reports whether a caller-supplied id is safe to log verbatim:
// non-empty, at most MaxLen bytes, and limited to [A-Za-z0-9._:-].
func Valid(id string) bool {
	if id == "" || len(id) > MaxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// WithRequestID returns a copy of ctx with the id attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns "" if ctx carries no id.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ensure keeps an id already on ctx and attaches a new one otherwise.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return WithRequestID(ctx, id), id
}
