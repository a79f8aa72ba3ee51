package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL               string        // Base URL of the service
	Recruiters            int           // Number of recruiters to simulate
	ProposalsPerRecruiter int           // Proposals submitted by each recruiter
	TopN                  int           // Leaderboard entries to fetch and verify
	Workers               int           // Number of concurrent workers
	Timeout               time.Duration // HTTP request timeout
	Seed                  int64         // Seed for the proposal paths
	OutputFile            string        // Optional JSON file for the generated plan
	Verbose               bool          // Log every failed request
}

// Job is one proposal and the statuses it is driven through after submission.
type Job struct {
	Recruiter string   `json:"recruiter"`
	Company   string   `json:"company"`
	JobOffer  string   `json:"job_offer_id"`
	Candidate string   `json:"candidate"`
	Sector    string   `json:"sector"`
	Path      []string `json:"path"`
}

// Expectation is what the service must report for one recruiter once every
// job has been driven.
type Expectation struct {
	Email    string
	Total    int
	Accepted int
	Hired    int
}

// Plan is the generated workload.
type Plan struct {
	Jobs         []Job
	Expectations map[string]*Expectation
}

// Entry mirrors a leaderboard entry.
type Entry struct {
	Rank              int     `json:"rank"`
	Email             string  `json:"email"`
	TotalPoints       int64   `json:"total_points"`
	TotalProposals    int     `json:"total_proposals"`
	AcceptedProposals int     `json:"accepted_proposals"`
	AcceptanceRate    float64 `json:"acceptance_rate"`
}

// RecruiterStats mirrors the stats view.
type RecruiterStats struct {
	Email             string `json:"email"`
	TotalPoints       int64  `json:"total_points"`
	Level             int    `json:"level"`
	TotalProposals    int    `json:"total_proposals"`
	AcceptedProposals int    `json:"accepted_proposals"`
	HiredProposals    int    `json:"hired_proposals"`
}

type submitResponse struct {
	Proposal struct {
		ID string `json:"id"`
	} `json:"proposal"`
}

// Stats holds run statistics.
type Stats struct {
	ProposalsSubmitted int
	TransitionsApplied int
	RequestsFailed     int
	RecruitersVerified int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
