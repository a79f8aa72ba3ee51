package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/headhunt/pkg/logger"
)

// maxErrorBody bounds how much of an error response is kept for logging.
const maxErrorBody = 512

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// statusError is a response with an unexpected status code.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// do sends a request and decodes a JSON response into out when it is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}, want int) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &statusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func recruiterPath(email, suffix string) string {
	return "/api/v1/recruiters/" + url.PathEscape(email) + suffix
}

// driveJobs submits every job and walks its path, concurrently across jobs
// and in order within one job.
func driveJobs(ctx context.Context, cfg *Config, client *HTTPClient, jobs []Job, stats *Stats) {
	log := logger.Get().Named("simulate")
	log.Info(ctx, "driving proposals", logger.Int("jobs", len(jobs)), logger.Int("workers", cfg.Workers))

	var (
		submitted   int64
		transitions int64
		failed      int64
	)

	jobChan := make(chan Job, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				n, err := driveJob(ctx, client, job)
				atomic.AddInt64(&transitions, int64(n))
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if cfg.Verbose {
						log.Warn(ctx, "job failed", logger.String("recruiter", job.Recruiter), logger.Error(err))
					}
					continue
				}
				atomic.AddInt64(&submitted, 1)
			}
		}()
	}

	go func() {
		defer close(jobChan)
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobChan <- job:
			}
		}
	}()
	wg.Wait()

	stats.ProposalsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.TransitionsApplied = int(atomic.LoadInt64(&transitions))
	stats.RequestsFailed = int(atomic.LoadInt64(&failed))
	log.Info(ctx, "proposals driven",
		logger.Int("submitted", stats.ProposalsSubmitted),
		logger.Int("transitions", stats.TransitionsApplied),
		logger.Int("failed", stats.RequestsFailed))
}

// driveJob returns the number of transitions applied before any failure.
func driveJob(ctx context.Context, client *HTTPClient, job Job) (int, error) {
	var res submitResponse
	err := client.do(ctx, http.MethodPost, "/api/v1/proposals", map[string]interface{}{
		"recruiter_email": job.Recruiter,
		"company_email":   job.Company,
		"job_offer_id":    job.JobOffer,
		"candidate_name":  job.Candidate,
		"sector":          job.Sector,
	}, &res, http.StatusCreated)
	if err != nil {
		return 0, fmt.Errorf("submit: %w", err)
	}

	for i, status := range job.Path {
		err := client.do(ctx, http.MethodPost, "/api/v1/proposals/"+res.Proposal.ID+"/transitions",
			map[string]string{"status": status, "actor": job.Company}, nil, http.StatusOK)
		if err != nil {
			return i, fmt.Errorf("transition to %s: %w", status, err)
		}
	}
	return len(job.Path), nil
}
