package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/BradenHooton/useraccounts/internal/services"

var tracer = otel.Tracer(instrumentationName)

type serviceMetrics struct {
	loginAttempts       metric.Int64Counter
	sessionsInvalidated metric.Int64Counter
	usersRegistered     metric.Int64Counter
}

// Instrument creation errors leave a nil counter, which the helpers skip.
func newServiceMetrics() *serviceMetrics {
	meter := otel.Meter(instrumentationName)
	m := &serviceMetrics{}

	m.loginAttempts, _ = meter.Int64Counter("auth_login_attempts",
		metric.WithDescription("Login attempts by outcome"))
	m.sessionsInvalidated, _ = meter.Int64Counter("auth_sessions_invalidated",
		metric.WithDescription("Session invalidations by reason"))
	m.usersRegistered, _ = meter.Int64Counter("users_registered",
		metric.WithDescription("Successful registrations"))

	return m
}

func (m *serviceMetrics) login(ctx context.Context, outcome string) {
	if m.loginAttempts != nil {
		m.loginAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (m *serviceMetrics) invalidated(ctx context.Context, reason string) {
	if m.sessionsInvalidated != nil {
		m.sessionsInvalidated.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func (m *serviceMetrics) registered(ctx context.Context) {
	if m.usersRegistered != nil {
		m.usersRegistered.Add(ctx, 1)
	}
}

// endSpan records err on span before ending it
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
