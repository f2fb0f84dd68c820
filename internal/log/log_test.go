package log

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerKeepsLatest(t *testing.T) {
	var out bytes.Buffer
	h := NewHandler(slog.NewTextHandler(&out, nil), 3)
	logger := slog.New(h)

	for i := 0; i < 5; i++ {
		logger.Info(fmt.Sprintf("message %d", i), "n", i)
	}

	lines := h.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO message 2 n=2", lines[0])
	assert.Equal(t, "INFO message 4 n=4", lines[2])
	assert.Contains(t, out.String(), "message 0", "records reach the wrapped handler")
}

func TestHandlerWithAttrsSharesBuffer(t *testing.T) {
	h := NewHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), 0)
	logger := slog.New(h).With("component", "scan")

	logger.Warn("slow")
	require.Len(t, h.Logs(), 1)
	assert.Equal(t, slog.LevelWarn, h.Logs()[0].Level)
}

func TestHandlerOutput(t *testing.T) {
	h := NewHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), 0)
	ch := make(chan tea.Msg, 1)
	h.SetOutput(ch)
	logger := slog.New(h)

	logger.Info("first")
	logger.Info("dropped, channel full")

	msg := <-ch
	r, ok := msg.(LogMsg)
	require.True(t, ok)
	assert.Equal(t, "first", r.Message)
	assert.Len(t, h.Logs(), 2)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	l, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
