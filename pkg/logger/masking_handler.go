package logger

import (
	"context"
	"log/slog"
	"strings"
)

// Keys whose values never reach a log sink. Lead PII (email) is masked
// partially so a support engineer can still correlate records.
var (
	secretKeys = map[string]struct{}{
		"password":      {},
		"token":         {},
		"secret":        {},
		"api_key":       {},
		"authorization": {},
	}

	emailKeys = map[string]struct{}{
		"email":      {},
		"lead_email": {},
	}
)

// MaskingHandler rewrites sensitive attributes before delegating to the next
// handler in the chain.
type MaskingHandler struct {
	next slog.Handler
}

func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MaskingHandler{next: h.next.WithAttrs(attrs)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(maskAttr(attr))
		return true
	})

	return h.next.Handle(ctx, out)
}

func maskAttr(attr slog.Attr) slog.Attr {
	key := strings.ToLower(attr.Key)

	if _, ok := secretKeys[key]; ok {
		attr.Value = slog.StringValue("***")
		return attr
	}

	if _, ok := emailKeys[key]; ok {
		attr.Value = slog.StringValue(maskEmail(attr.Value.String()))
	}

	return attr
}

// maskEmail keeps the first rune of the local part and the full domain:
// "maria@example.com" becomes "m***@example.com".
func maskEmail(s string) string {
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		return "***"
	}

	local := []rune(s[:at])
	return string(local[0]) + "***" + s[at:]
}
