package smoke

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/nakshatra/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initialises the global logger writing to stdout and logFile.
// An empty logFile gets a timestamped name.
func SetupLogging(logFile string) error {
	if logFile == "" {
		logFile = "smoke_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWith(io.MultiWriter(os.Stdout, file), logger.FormatText); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("log_file", logFile))
	return nil
}

// ShowHelp prints usage information for the smoke tool.
func ShowHelp() {
	os.Stdout.WriteString(`Nakshatra Chart Smoke Tool
==========================

Registers generated birth profiles against a running chart service, reads
back every natal chart and checks the chart invariants.

Usage:
  go run ./cmd/chart-smoke [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -profiles int
        Number of profiles to generate and register (default 1000)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed uint
        Generator seed; 0 picks one from the clock
  -output string
        File the generated profiles are written to (default: none)
  -log string
        Log file for test output (default: smoke_TIMESTAMP.log)
  -verbose
        Log every failed registration
  -help
        Show this help message

Examples:
  go run ./cmd/chart-smoke
  go run ./cmd/chart-smoke -profiles 20000 -workers 32 -url http://localhost:8080
  go run ./cmd/chart-smoke -seed 42 -output profiles.json
`)
}
