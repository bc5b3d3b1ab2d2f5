package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sakif/scorecast/internal/apperror"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatTint = "tint"
)

// NewLogger builds the process logger. tint is colored output for a terminal;
// text and json are for log collectors.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, apperror.Configuration("log_level", fmt.Sprintf("invalid LOG_LEVEL %q", level))
	}

	switch strings.ToLower(format) {
	case FormatTint:
		return slog.New(tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: time.Kitchen})), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	}
	return nil, apperror.Configuration("log_format", fmt.Sprintf("invalid LOG_FORMAT %q", format))
}

func validateLogging(level, format string) error {
	_, err := NewLogger(io.Discard, level, format)
	return err
}
