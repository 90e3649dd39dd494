package rest

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmitrijs2005/taskkeeper/internal/server/rest"

// startSpan opens a "tasks.<op>" span and moves the request onto its
// context.
func startSpan(c echo.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request().Context(), "tasks."+op, trace.WithAttributes(attrs...))
	c.SetRequest(c.Request().WithContext(ctx))
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("error.kind", errorKind(err)))
		span.SetStatus(codes.Error, errorKind(err))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
