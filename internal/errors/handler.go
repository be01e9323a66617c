package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Nickdtt/ia-crm/pkg/logger"
)

// fallbackUserMessage covers errors that carry no user-facing text of their own.
const fallbackUserMessage = "Desculpe, não consegui processar sua mensagem. Pode tentar novamente?"

// Handler centralizes logging and Sentry reporting for application errors and
// resolves the message that may be shown to the end user.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err and returns the user-facing message plus whether a retry
// makes sense. Severity high and critical errors are forwarded to Sentry when
// reporting is enabled.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	appErr := Classify(err)
	if appErr == nil {
		h.logError(ctx, "unhandled error",
			slog.String("message", err.Error()),
			slog.String("severity", string(SeverityHigh)),
		)
		if h.sentryEnabled {
			report(err)
		}

		return fallbackUserMessage, false
	}

	h.logError(ctx, "application error",
		slog.String("code", appErr.Code),
		slog.String("message", appErr.Message),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
	)

	if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
		report(err)
	}

	msg := appErr.UserMessage
	if msg == "" {
		msg = fallbackUserMessage
	}

	return msg, appErr.Retryable
}

// Classify extracts the AppError from err's chain, or nil for foreign errors.
func Classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return nil
}

func (h *Handler) logError(ctx context.Context, msg string, attrs ...slog.Attr) {
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}

	h.log.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func report(err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		if appErr := Classify(err); appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}
			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		sentry.CaptureException(err)
	})
}
