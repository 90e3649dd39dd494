package rest

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func findSpan(t *testing.T, spans tracetest.SpanStubs, name string) tracetest.SpanStub {
	t.Helper()
	for _, s := range spans {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("span %q not recorded; have %d spans", name, len(spans))
	return tracetest.SpanStub{}
}

func TestListSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	h := newHarness(t, nil)
	token, _ := h.signup(t, "trace@example.com")
	h.create(t, token, map[string]any{"title": "a"})
	h.create(t, token, map[string]any{"title": "b"})

	rec := h.do(t, http.MethodGet, "/api/tasks?sort=dueDate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	span := findSpan(t, exporter.GetSpans(), "tasks.list")
	attrs := attributesToMap(span.Attributes)
	assert.Equal(t, "dueDate", attrs["task.sort"])
	assert.Equal(t, int64(2), attrs["task.count"])
	assert.NotContains(t, attrs, "error.kind")
	assert.Equal(t, codes.Ok, span.Status.Code)

	create := findSpan(t, exporter.GetSpans(), "tasks.create")
	assert.Equal(t, codes.Ok, create.Status.Code)
}

func TestSpanRecordsErrorKind(t *testing.T) {
	exporter := setupTestTracer(t)
	h := newHarness(t, nil)
	token, _ := h.signup(t, "trace-err@example.com")

	rec := h.do(t, http.MethodGet, "/api/tasks/00000000-0000-0000-0000-000000000000", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	span := findSpan(t, exporter.GetSpans(), "tasks.get")
	assert.Equal(t, "not_found", attributesToMap(span.Attributes)["error.kind"])
	assert.Equal(t, codes.Error, span.Status.Code)

	rec = h.do(t, http.MethodPost, "/api/tasks/export", token, nil)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
	span = findSpan(t, exporter.GetSpans(), "tasks.export")
	assert.Equal(t, "export_disabled", attributesToMap(span.Attributes)["error.kind"])
}
