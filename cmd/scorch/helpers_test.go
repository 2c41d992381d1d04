package main

import (
	"io"
	"log/slog"
)

func appLoggerForTest() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
