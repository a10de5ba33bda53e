// Package svcfields centralizes the log fields shared by every subsystem.
package svcfields

import (
	"io"
	"strings"
	"sync"

	"pkt.systems/pslog"
)

// SubsystemKey tags each log entry with the emitting subsystem path.
const SubsystemKey = pslog.TrustedString("sys")

var (
	noopOnce sync.Once
	noop     pslog.Logger
)

// NoopLogger returns a shared logger that discards everything.
func NoopLogger() pslog.Logger {
	noopOnce.Do(func() {
		noop = pslog.NewWithOptions(io.Discard, pslog.Options{
			Mode:     pslog.ModeStructured,
			MinLevel: pslog.Disabled,
		})
	})
	return noop
}

// Ensure returns l, or a discarding logger when l is nil.
func Ensure(l pslog.Logger) pslog.Logger {
	if l != nil {
		return l
	}
	return NoopLogger()
}

// WithSubsystem attaches a dot-delimited subsystem tag to every entry logged
// through the returned logger. Empty fragments are dropped.
func WithSubsystem(logger pslog.Logger, parts ...string) pslog.Logger {
	logger = Ensure(logger)
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, ". ")
		if part == "" {
			continue
		}
		cleaned = append(cleaned, part)
	}
	if len(cleaned) == 0 {
		return logger
	}
	return logger.With(SubsystemKey, strings.Join(cleaned, "."))
}
