package slogpretty

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	opts := PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo}}
	log := slog.New(opts.NewPrettyHandler(&buf)).With("component", "sync")

	log.Debug("скрыто")
	log.Warn("повтор отправки", "attempt", 3, "error", errors.New("timeout"))

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "WARN:")
	assert.Contains(t, out, "повтор отправки")
	assert.Contains(t, out, `"component": "sync"`)
	assert.Contains(t, out, `"attempt": 3`)
	assert.Contains(t, out, `"error": "timeout"`)
}
