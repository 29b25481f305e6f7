// Package observe is the diagnostics boundary of the reconciliation core.
//
// Core packages never write logs or traces themselves. They accept an
// Observer and report through it: Log for structured diagnostics, Phase for
// timed sections such as alignment of one client. The shell decides where
// that goes: nowhere (Nop), log/slog (NewSlog), OpenTelemetry spans
// (NewTracing), or several of these at once (Multi).
package observe

import (
	"context"
	"log/slog"
)

// LevelTrace is below slog.LevelDebug. It is used for per-item detail, such
// as one record per scored pair of ticks, that is too noisy for debug output.
const LevelTrace = slog.LevelDebug - 4

// Observer receives diagnostics from the reconciliation core.
type Observer interface {
	// Log records a message with alternating key/value arguments.
	Log(level slog.Level, msg string, args ...any)

	// Phase marks the start of a named section of work. The returned function
	// marks its end and must be called exactly once.
	Phase(name string, args ...any) (end func())

	// Enabled reports whether messages at level are recorded at all, so
	// callers can skip building expensive arguments.
	Enabled(level slog.Level) bool
}

// Nop discards everything.
var Nop Observer = nop{}

type nop struct{}

func (nop) Log(slog.Level, string, ...any) {}
func (nop) Phase(string, ...any) func()    { return func() {} }
func (nop) Enabled(slog.Level) bool        { return false }

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop
	}
	return o
}

// Slog forwards diagnostics to a slog.Logger.
type Slog struct {
	logger *slog.Logger
}

// NewSlog returns an observer writing to logger. A nil logger uses
// slog.Default() at the time of each call.
func NewSlog(logger *slog.Logger) *Slog {
	return &Slog{logger: logger}
}

func (s *Slog) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Log implements Observer.
func (s *Slog) Log(level slog.Level, msg string, args ...any) {
	s.log().Log(context.Background(), level, msg, args...)
}

// Phase implements Observer. Phases are logged at debug level.
func (s *Slog) Phase(name string, args ...any) func() {
	logger := s.log()
	logger.Debug("phase start", append([]any{"phase", name}, args...)...)
	return func() {
		logger.Debug("phase end", "phase", name)
	}
}

// Enabled implements Observer.
func (s *Slog) Enabled(level slog.Level) bool {
	return s.log().Enabled(context.Background(), level)
}

// Multi fans diagnostics out to several observers.
func Multi(observers ...Observer) Observer {
	var live []Observer
	for _, o := range observers {
		if o != nil && o != Nop {
			live = append(live, o)
		}
	}
	switch len(live) {
	case 0:
		return Nop
	case 1:
		return live[0]
	}
	return multi(live)
}

type multi []Observer

func (m multi) Log(level slog.Level, msg string, args ...any) {
	for _, o := range m {
		o.Log(level, msg, args...)
	}
}

func (m multi) Phase(name string, args ...any) func() {
	ends := make([]func(), len(m))
	for i, o := range m {
		ends[i] = o.Phase(name, args...)
	}
	return func() {
		for i := len(ends) - 1; i >= 0; i-- {
			ends[i]()
		}
	}
}

func (m multi) Enabled(level slog.Level) bool {
	for _, o := range m {
		if o.Enabled(level) {
			return true
		}
	}
	return false
}
