package observe

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNop(t *testing.T) {
	Nop.Log(slog.LevelError, "ignored")
	Nop.Phase("ignored")()
	assert.False(t, Nop.Enabled(slog.LevelError))
	assert.Equal(t, Nop, OrNop(nil))
}

func TestSlog_WritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	o := NewSlog(logger)

	end := o.Phase("align", "client_id", 3)
	o.Log(slog.LevelInfo, "client accuracy mismatch", "client_id", 3, "reported", true)
	end()

	out := buf.String()
	assert.Contains(t, out, "phase start")
	assert.Contains(t, out, "phase=align")
	assert.Contains(t, out, "client accuracy mismatch")
	assert.Contains(t, out, "client_id=3")
	assert.Contains(t, out, "phase end")
	assert.True(t, o.Enabled(slog.LevelDebug))
}

func TestSlog_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	o := NewSlog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	o.Log(slog.LevelDebug, "hidden")
	assert.False(t, o.Enabled(slog.LevelDebug))
	assert.Empty(t, buf.String())
}

func TestTracing_RecordsNestedSpansAndEvents(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	o := NewTracing(context.Background(), provider.Tracer("test"), nil)

	endMerge := o.Phase("merge", "clients", 2)
	endAlign := o.Phase("align", "client_id", 2)
	o.Log(slog.LevelDebug, "alignment run", "pairs", 4)
	endAlign()
	o.Log(slog.LevelWarn, "alert raised")
	endMerge()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	align, merge := spans[0], spans[1]
	assert.Equal(t, "align", align.Name())
	assert.Equal(t, "merge", merge.Name())
	assert.Equal(t, merge.SpanContext().SpanID(), align.Parent().SpanID())

	require.Len(t, align.Events(), 1)
	assert.Equal(t, "alignment run", align.Events()[0].Name)
	require.Len(t, merge.Events(), 1)
	assert.Equal(t, "alert raised", merge.Events()[0].Name)
}

func TestTracing_EndIsIdempotent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	o := NewTracing(context.Background(), provider.Tracer("test"), nil)

	end := o.Phase("once")
	end()
	end()

	assert.Len(t, recorder.Ended(), 1)
}

func TestTracing_SkipsMessagesBelowMinLevel(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	o := NewTracing(context.Background(), provider.Tracer("test"), nil)
	assert.False(t, o.Enabled(LevelTrace))
	assert.True(t, o.Enabled(slog.LevelDebug))

	end := o.Phase("align")
	for range 500 {
		o.Log(LevelTrace, "tick similarity", "total", 0.0)
	}
	o.Log(slog.LevelDebug, "alignment complete", "mapped_ticks", 3)
	end()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "alignment complete", spans[0].Events()[0].Name)
	assert.Zero(t, spans[0].DroppedEvents())
}

func TestTracing_MinLevelOption(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	o := NewTracing(context.Background(), provider.Tracer("test"), nil, WithMinLevel(slog.LevelInfo))
	assert.False(t, o.Enabled(slog.LevelDebug))

	end := o.Phase("merge")
	o.Log(slog.LevelDebug, "merge input")
	o.Log(slog.LevelInfo, "merge complete")
	end()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "merge complete", spans[0].Events()[0].Name)
}

func TestTracing_EnabledFollowsNext(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var buf bytes.Buffer
	next := NewSlog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelTrace})))
	o := NewTracing(context.Background(), provider.Tracer("test"), next)
	assert.True(t, o.Enabled(LevelTrace))

	end := o.Phase("align")
	o.Log(LevelTrace, "tick similarity")
	end()

	assert.Contains(t, buf.String(), "tick similarity")
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Empty(t, spans[0].Events())
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	oa := NewSlog(slog.New(slog.NewTextHandler(&a, nil)))
	ob := NewSlog(slog.New(slog.NewTextHandler(&b, nil)))

	m := Multi(oa, nil, Nop, ob)
	m.Log(slog.LevelInfo, "hello")

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, b.String(), "hello")
	assert.Equal(t, Observer(oa), Multi(oa, Nop))
	assert.Equal(t, Nop, Multi())
}

func TestAttributes(t *testing.T) {
	attrs := attributes([]any{"s", "x", "i", 1, "f", 1.5, "b", true, "odd"})
	require.Len(t, attrs, 4)
	assert.Equal(t, "s", string(attrs[0].Key))
	assert.Equal(t, int64(1), attrs[1].Value.AsInt64())
}
