package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sintonia/internal/apperr"
	"sintonia/internal/models"
	"sintonia/internal/pagination"
	"sintonia/internal/repository"
)

var tracer = otel.Tracer("sintonia/service")

// Dispatch runs side effects that must not delay or fail the calling operation
type Dispatch func(fn func())

// Async runs fn on its own goroutine
func Async(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background task panicked", "panic", r)
			}
		}()
		fn()
	}()
}

// Sync runs fn inline; used by tests and tools
func Sync(fn func()) { fn() }

// requireRole is the single role guard at the top of every operation
func requireRole(actor models.Identity, roles ...models.Role) error {
	if actor.Is(roles...) {
		return nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return apperr.Forbidden("this operation requires role %s", strings.Join(names, " or "))
}

// startSpan opens a service span
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records unexpected errors on the span and ends it.
// Domain errors are expected outcomes and only tagged with their code.
func endSpan(span trace.Span, err error) {
	if err != nil {
		code := apperr.CodeOf(err)
		span.SetAttributes(attribute.String("error.code", string(code)))
		if code == apperr.CodeInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// notFoundAs maps repository.ErrNotFound to a NotFound domain error
func notFoundAs(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

func pageArgs(p pagination.Params) (limit, offset int) {
	if p.PerPage <= 0 {
		p = pagination.Params{Page: pagination.DefaultPage, PerPage: pagination.DefaultPerPage}
	}
	return p.Limit(), p.Offset()
}
