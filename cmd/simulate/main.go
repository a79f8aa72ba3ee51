package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/headhunt/internal/simulate"
)

// Default configuration constants.
const (
	defaultRecruiters  = 50
	defaultProposals   = 20
	defaultTopN        = 50
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		recruiters = flag.Int("recruiters", defaultRecruiters, "Number of recruiters")
		proposals  = flag.Int("proposals", defaultProposals, "Proposals per recruiter")
		topN       = flag.Int("top", defaultTopN, "Leaderboard entries to verify")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Seed for the proposal paths")
		outputFile = flag.String("output", "", "Write the generated plan as JSON to this file")
		logFile    = flag.String("log", "", "Log file, - for stdout only")
		verbose    = flag.Bool("verbose", false, "Log every failed request")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:               *baseURL,
		Recruiters:            *recruiters,
		ProposalsPerRecruiter: *proposals,
		TopN:                  *topN,
		Workers:               *workers,
		Timeout:               *timeout,
		Seed:                  *seed,
		OutputFile:            *outputFile,
		Verbose:               *verbose,
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
