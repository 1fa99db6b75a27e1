package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func setupLogging(logLevel string) error {
	// Get log level.
	level := slog.LevelWarn
	if logLevel != "" {
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}

	// Logs go to stderr, query output owns stdout.
	logOutput := os.Stderr
	// Create handler depending on OS.
	var logHandler slog.Handler
	switch runtime.GOOS {
	case "windows":
		logHandler = tint.NewHandler(
			colorable.NewColorable(logOutput),
			&tint.Options{
				Level:      level,
				TimeFormat: time.DateTime,
			},
		)
	case "linux":
		logHandler = tint.NewHandler(logOutput, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isatty.IsTerminal(logOutput.Fd()),
		})
	default:
		logHandler = tint.NewHandler(logOutput, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    true,
		})
	}
	// Set as default logger.
	slog.SetDefault(slog.New(logHandler))
	slog.SetLogLoggerLevel(level)

	return nil
}
