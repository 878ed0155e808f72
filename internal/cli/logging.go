package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// newLogger builds the run logger: text to console, plus JSON lines to
// eventLog when it is set. The returned close func releases the event log.
func newLogger(console io.Writer, level slog.Level, eventLog string) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewTextHandler(console, opts)}

	closeFn := func() error { return nil }
	if eventLog != "" {
		f, err := os.OpenFile(eventLog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open event log: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
		closeFn = f.Close
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeFn, nil
	}
	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}
