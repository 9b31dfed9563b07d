// Package logutil configures slog for this module's diagnostics.
package logutil

import (
	"io"
	"log/slog"
	"path/filepath"
)

// LevelTrace is below slog.LevelDebug and carries per-decoding-step
// detail, far too noisy for normal operation.
const LevelTrace slog.Level = -8

// NewLogger builds a text logger that labels trace records and trims
// source file paths to their base name.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if attr.Value.Any().(slog.Level) == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attr
		},
	}))
}
