// Package logging builds the slog logger used by the migrate CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

// TimeFormat is the timestamp layout of CLI log lines.
const TimeFormat = "2006-01-02 15:04:05.000"

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a
// slog.Level. Matching is case-insensitive.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level

	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("parsing log level %q: %w", s, err)
	}

	return lvl, nil
}

// New returns a logger writing tint-formatted lines to w. Colour escapes are
// emitted only when color is true, normally when w is a terminal.
func New(w io.Writer, level slog.Leveler, color bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		NoColor:    !color,
		TimeFormat: TimeFormat,
	}))
}
