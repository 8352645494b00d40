package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/config"
)

// newLogger builds the logger of a task run: console output on stderr in the
// configured format, plus JSON lines appended to log.file when set. The
// returned close func releases the log file.
func newLogger(s config.Settings, stderr io.Writer) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: s.LogLevel}

	format := s.LogFormat
	if format == "auto" {
		format = "json"
		if isTerminal(stderr) {
			format = "text"
		}
	}
	var console slog.Handler
	if format == "text" {
		console = slog.NewTextHandler(stderr, opts)
	} else {
		console = slog.NewJSONHandler(stderr, opts)
	}

	if s.LogFile == "" {
		return slog.New(console), func() error { return nil }, nil
	}
	f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", s.LogFile, err)
	}
	handler := slog.NewMultiHandler(console, slog.NewJSONHandler(f, opts))
	return slog.New(handler), f.Close, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
