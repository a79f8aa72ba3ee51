package simulate

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/headhunt/pkg/logger"
)

// SetupLogging logs to stdout and to logFile. An empty logFile gets a
// timestamped name; "-" logs to stdout only.
func SetupLogging(logFile string, verbose bool) error {
	var out io.Writer = os.Stdout
	if logFile != "-" {
		if logFile == "" {
			logFile = "simulate_" + time.Now().Format("20060102_150405") + ".log"
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`headhunt simulator
==================

Drives recruiters' proposals through the status graph over HTTP and verifies
their stats and the leaderboard.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -recruiters int
        Number of recruiters (default 50)
  -proposals int
        Proposals per recruiter (default 20)
  -top int
        Leaderboard entries to verify (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed int
        Seed for the proposal paths (default: current time)
  -output string
        Write the generated plan as JSON to this file
  -log string
        Log file, "-" for stdout only (default: simulate_TIMESTAMP.log)
  -verbose
        Log every failed request
  -help
        Show this help message

Examples:
  go run ./cmd/simulate -recruiters 200 -proposals 50 -workers 16
  go run ./cmd/simulate -seed 42 -output plan.json -log -
`)
}
