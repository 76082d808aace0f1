package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Services receive it through
// functional options and log with InfoContext/WarnContext so request IDs
// travel with the record.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
