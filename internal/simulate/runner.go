package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/headhunt/pkg/logger"
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	directoryPermission     = 0o750
	filePermission          = 0o600
)

// ErrIncomplete reports requests that failed while driving the workload.
var ErrIncomplete = errors.New("workload incomplete")

// Run drives the workload against the service and verifies the outcome.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("simulate")
	log.Info(ctx, "starting headhunt simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("recruiters", cfg.Recruiters),
		logger.Int("proposalsPerRecruiter", cfg.ProposalsPerRecruiter),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Int64("seed", cfg.Seed))

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the plan
	plan := generatePlan(cfg)
	if cfg.OutputFile != "" {
		if err := savePlan(cfg.OutputFile, plan); err != nil {
			log.Warn(ctx, "failed to save plan", logger.Error(err))
		}
	}

	// Step 3: Drive submissions and transitions
	driveJobs(ctx, cfg, client, plan.Jobs, stats)
	if stats.RequestsFailed > 0 {
		return finish(ctx, stats), fmt.Errorf("%w: %d of %d jobs failed", ErrIncomplete, stats.RequestsFailed, len(plan.Jobs))
	}

	// Step 4: Verify per-recruiter stats
	if err := verifyRecruiters(ctx, client, plan, stats); err != nil {
		return finish(ctx, stats), err
	}

	// Step 5: Verify the leaderboard
	entries, err := fetchLeaderboard(ctx, client, cfg.TopN)
	if err != nil {
		return finish(ctx, stats), fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(entries)
	if err := verifyLeaderboard(entries); err != nil {
		return finish(ctx, stats), err
	}
	displayTopRecruiters(ctx, entries)

	log.Info(ctx, "simulation verified")
	return finish(ctx, stats), nil
}

func finish(ctx context.Context, stats *Stats) *Stats {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.ProposalsSubmitted+stats.TransitionsApplied) / stats.Duration.Seconds()
	}
	logger.Get().Named("simulate").Info(ctx, "final statistics",
		logger.Int("proposalsSubmitted", stats.ProposalsSubmitted),
		logger.Int("transitionsApplied", stats.TransitionsApplied),
		logger.Int("requestsFailed", stats.RequestsFailed),
		logger.Int("recruitersVerified", stats.RecruitersVerified),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("writesPerSecond", perSecond))
	return stats
}

// savePlan writes the generated jobs as a JSON array.
func savePlan(filename string, plan *Plan) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(plan.Jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}
