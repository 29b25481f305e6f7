package observe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing turns phases into OpenTelemetry spans and log messages into span
// events on the innermost open phase. Messages below the minimum level are
// not recorded on spans. Every message is also passed to next.
type Tracing struct {
	tracer trace.Tracer
	next   Observer
	level  slog.Leveler

	mu    sync.Mutex
	stack []context.Context
}

// TracingOption configures a Tracing observer.
type TracingOption func(*Tracing)

// WithMinLevel sets the lowest level recorded as a span event. The default
// is slog.LevelDebug.
func WithMinLevel(level slog.Leveler) TracingOption {
	return func(t *Tracing) { t.level = level }
}

// NewTracing returns an observer recording spans with tracer. Spans are
// rooted in ctx. next may be nil.
func NewTracing(ctx context.Context, tracer trace.Tracer, next Observer, opts ...TracingOption) *Tracing {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &Tracing{
		tracer: tracer,
		next:   OrNop(next),
		level:  slog.LevelDebug,
		stack:  []context.Context{ctx},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracing) records(level slog.Level) bool {
	return level >= t.level.Level()
}

// Log implements Observer.
func (t *Tracing) Log(level slog.Level, msg string, args ...any) {
	t.next.Log(level, msg, args...)
	if !t.records(level) {
		return
	}

	t.mu.Lock()
	ctx := t.stack[len(t.stack)-1]
	t.mu.Unlock()

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := append([]attribute.KeyValue{attribute.String("level", level.String())}, attributes(args)...)
	span.AddEvent(msg, trace.WithAttributes(attrs...))
}

// Phase implements Observer.
func (t *Tracing) Phase(name string, args ...any) func() {
	endNext := t.next.Phase(name, args...)

	t.mu.Lock()
	parent := t.stack[len(t.stack)-1]
	ctx, span := t.tracer.Start(parent, name, trace.WithAttributes(attributes(args)...))
	t.stack = append(t.stack, ctx)
	depth := len(t.stack)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			span.End()
			t.mu.Lock()
			if len(t.stack) >= depth {
				t.stack = t.stack[:depth-1]
			}
			t.mu.Unlock()
			endNext()
		})
	}
}

// Enabled implements Observer.
func (t *Tracing) Enabled(level slog.Level) bool {
	return t.records(level) || t.next.Enabled(level)
}

// attributes converts slog-style alternating key/value pairs.
func attributes(args []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		switch v := args[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case []int:
			attrs = append(attrs, attribute.IntSlice(key, v))
		case []string:
			attrs = append(attrs, attribute.StringSlice(key, v))
		default:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return attrs
}
