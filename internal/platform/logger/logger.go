package logger

import (
	"log/slog"
	"os"
)

// New returns the JSON slog logger services receive through their
// constructors.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
