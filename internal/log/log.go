package log

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultCapacity is how many records a Handler keeps.
const DefaultCapacity = 20

// Handler is a slog.Handler that keeps the latest records in memory, so the
// configuration portal and the monitor can show them, and optionally
// forwards them to a tea.Program.
type Handler struct {
	slog.Handler
	buf *buffer
}

type buffer struct {
	mu   sync.Mutex
	ch   chan<- tea.Msg
	cap  int
	logs []slog.Record
}

// NewHandler wraps handler, keeping up to capacity records.
func NewHandler(handler slog.Handler, capacity int) *Handler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Handler{
		Handler: handler,
		buf:     &buffer{cap: capacity},
	}
}

// Handle stores the record, forwards it to the output channel if one is set,
// and passes it on to the wrapped handler.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	h.buf.mu.Lock()
	h.buf.logs = append(h.buf.logs, r.Clone())
	if len(h.buf.logs) > h.buf.cap {
		h.buf.logs = h.buf.logs[1:]
	}
	ch := h.buf.ch
	h.buf.mu.Unlock()

	if ch != nil {
		// Never stall the caller on a busy program.
		select {
		case ch <- LogMsg(r):
		default:
		}
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs keeps sharing the record buffer.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{Handler: h.Handler.WithAttrs(attrs), buf: h.buf}
}

// WithGroup keeps sharing the record buffer.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{Handler: h.Handler.WithGroup(name), buf: h.buf}
}

// Logs returns the stored log records, oldest first.
func (h *Handler) Logs() []slog.Record {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	return append([]slog.Record(nil), h.buf.logs...)
}

// Lines renders the stored records as "LEVEL message key=value" strings.
func (h *Handler) Lines() []string {
	logs := h.Logs()
	lines := make([]string, 0, len(logs))
	for _, r := range logs {
		lines = append(lines, FormatRecord(r))
	}
	return lines
}

// SetOutput sets the channel records are forwarded to; nil stops forwarding.
func (h *Handler) SetOutput(ch chan<- tea.Msg) {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	h.buf.ch = ch
}

// LogMsg is a tea.Msg that represents a log message.
type LogMsg slog.Record

// FormatRecord renders a record on one line.
func FormatRecord(r slog.Record) string {
	var s strings.Builder
	s.WriteString(r.Level.String())
	s.WriteString(" ")
	s.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		s.WriteString(" ")
		s.WriteString(a.Key)
		s.WriteString("=")
		s.WriteString(a.Value.String())
		return true
	})
	return s.String()
}

// ParseLevel parses "debug", "info", "warn" or "error".
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	err := l.UnmarshalText([]byte(level))
	return l, err
}

var defaultHandler *Handler

// Init wraps handler, installs the result as the slog default and returns it.
func Init(handler slog.Handler) *Handler {
	defaultHandler = NewHandler(handler, DefaultCapacity)
	slog.SetDefault(slog.New(defaultHandler))
	return defaultHandler
}

// SetOutput sets the output channel for the default logger.
func SetOutput(ch chan<- tea.Msg) {
	if defaultHandler != nil {
		defaultHandler.SetOutput(ch)
	}
}

// Logs returns the stored log records from the default logger.
func Logs() []slog.Record {
	if defaultHandler == nil {
		return nil
	}
	return defaultHandler.Logs()
}
