package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const LocalRequestID = "request_id"

// RequestID ensures every request carries an X-Request-Id.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(fiber.HeaderXRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, rid)
		c.Locals(LocalRequestID, rid)
		return c.Next()
	}
}

// Tracing starts a span per request and hands its context to handlers via UserContext.
func Tracing() fiber.Handler {
	tr := otel.Tracer("chess-mint-rewards/http")
	return func(c *fiber.Ctx) error {
		ctx, span := tr.Start(c.UserContext(), c.Method()+" "+c.Path())
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		span.SetAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.target", c.Path()),
			attribute.Int("http.status_code", status),
		)
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "server_error")
		}
		return err
	}
}

// AccessLog writes one zap line per request.
func AccessLog(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		rid, _ := c.Locals(LocalRequestID).(string)
		sc := trace.SpanFromContext(c.UserContext()).SpanContext()
		logger.Info("http_request",
			zap.String("request_id", rid),
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
}
