package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleTime  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleKey   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleIdent = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	levelStyle = map[slog.Level]lipgloss.Style{
		slog.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		slog.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		slog.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		slog.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
	levelLabel = map[slog.Level]string{
		slog.LevelDebug: "DBG",
		slog.LevelInfo:  "INF",
		slog.LevelWarn:  "WRN",
		slog.LevelError: "ERR",
	}
)

// identityKeys are highlighted so tenant and template scope stand out.
var identityKeys = map[string]bool{
	"org_id":      true,
	"template_id": true,
	"request_id":  true,
	"version":     true,
}

// PrettyHandler provides colorized console output for TTY.
type PrettyHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

// NewPrettyHandler creates a new pretty handler.
func NewPrettyHandler(w io.Writer, level slog.Level) *PrettyHandler {
	return &PrettyHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and writes the log record.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(styleTime.Render(r.Time.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(formatLevel(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	for _, attr := range h.attrs {
		h.writeAttr(&b, attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs returns a new handler with attrs.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup returns a new handler with a group.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

func formatLevel(level slog.Level) string {
	label, ok := levelLabel[level]
	if !ok {
		return level.String()
	}
	return levelStyle[level].Render(label)
}

func (h *PrettyHandler) writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Value.Kind() == slog.KindGroup {
		for _, attr := range a.Value.Group() {
			h.writeAttr(b, attr)
		}
		return
	}

	key := a.Key
	for i := len(h.groups) - 1; i >= 0; i-- {
		key = h.groups[i] + "." + key
	}

	b.WriteByte(' ')
	if identityKeys[a.Key] {
		b.WriteString(styleIdent.Render(key))
	} else {
		b.WriteString(styleKey.Render(key))
	}
	fmt.Fprintf(b, "=%v", a.Value.Any())
}
