// Package jsonutil provides bounded JSON handling for payloads the bridge
// forwards opaquely: compaction for cached responses and best-effort capture
// of upstream error bodies.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"io"

	"pkt.systems/jpact"
)

// Compact returns data stripped of insignificant whitespace. maxBytes bounds
// the accepted input (<=0 disables the bound). Invalid JSON is returned
// unchanged so callers never lose a payload to cosmetics.
func Compact(data []byte, maxBytes int64) []byte {
	if len(data) == 0 {
		return data
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return data
	}
	if !json.Valid(data) {
		return data
	}
	out, err := jpact.CompactToBuffer(bytes.NewReader(data), maxBytes)
	if err != nil {
		return data
	}
	return out
}

// CaptureBody reads at most maxBytes from r for diagnostic use. JSON bodies
// are compacted, anything else is returned as-is, truncated at the bound.
// The capture is best-effort: read failures yield whatever arrived first.
func CaptureBody(r io.Reader, maxBytes int64) string {
	if r == nil {
		return ""
	}
	if maxBytes <= 0 {
		maxBytes = 2048
	}
	raw, _ := io.ReadAll(io.LimitReader(r, maxBytes))
	if len(raw) == 0 {
		return ""
	}
	if json.Valid(raw) {
		if out, err := jpact.CompactToBuffer(bytes.NewReader(raw), maxBytes+1); err == nil {
			return string(out)
		}
	}
	return string(raw)
}
