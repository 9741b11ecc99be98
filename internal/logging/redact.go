package logging

import (
	"context"
	"log/slog"
	"regexp"
)

const redacted = "[REDACTED]"

// secretPatterns cover what can reach a log line here: database DSNs,
// AWS credentials from the S3 archiver, and bearer tokens forwarded by
// the gateway.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(postgres(ql)?|mysql)://[^:\s/]+:[^@\s]+@`),
	regexp.MustCompile(`(?i)password=[^\s&]+`),
	regexp.MustCompile(`(?i)password["'\s:=]+[^\s"']{8,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)aws[_-]?secret[_-]?access[_-]?key["'\s:=]+[A-Za-z0-9/+=]{40}`),
	regexp.MustCompile(`(?i)x-amz-security-token=[^\s&]+`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|secret|token)["'\s:=]+[a-zA-Z0-9_-]{20,}`),
}

// Redact replaces credentials in s with a placeholder.
func Redact(s string) string {
	for _, re := range secretPatterns {
		s = re.ReplaceAllString(s, redacted)
	}
	return s
}

// redactHandler scrubs the message and every string attribute before
// passing the record on.
type redactHandler struct {
	next slog.Handler
}

func (h redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return redactHandler{next: h.next.WithAttrs(clean)}
}

func (h redactHandler) WithGroup(name string) slog.Handler {
	return redactHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, g := range group {
			clean[i] = redactAttr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	default:
		return a
	}
}
