// Package correlation issues and carries the per-tool-call identifier that
// ties together every retry, cache, and upload observation beneath one
// logical operation.
package correlation

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// MaxIDLength bounds accepted identifiers; longer values are truncated.
const MaxIDLength = 128

type contextKey struct{}

// New returns a fresh time-ordered identifier (UUIDv7).
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Sanitize strips whitespace and non-printable bytes and enforces
// MaxIDLength. It returns "" when nothing usable remains, so callers can
// fall back to a generated identifier.
func Sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= MaxIDLength {
			break
		}
	}
	return b.String()
}

// With stores id on the context after sanitizing. An unusable id leaves the
// context unchanged.
func With(ctx context.Context, id string) context.Context {
	id = Sanitize(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// From reports the identifier carried by ctx, or "".
func From(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Ensure returns ctx carrying an identifier, generating one when absent,
// along with the identifier in effect.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := From(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return context.WithValue(ctx, contextKey{}, id), id
}
