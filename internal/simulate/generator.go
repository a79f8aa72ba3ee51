package simulate

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// paths are walks of the status graph starting at pending.
var paths = [][]string{
	{},
	{"under_review"},
	{"under_review", "approved"},
	{"under_review", "rejected"},
	{"under_review", "approved", "hired"},
	{"approved"},
	{"approved", "hired"},
	{"approved", "rejected"},
	{"rejected"},
}

var sectors = []string{"tech", "healthcare", "finance", "engineering", "sales", "hospitality"}

// generatePlan builds the jobs for cfg and the counts they must produce.
// The same seed yields the same paths.
func generatePlan(cfg *Config) *Plan {
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // workload shape, not security
	plan := &Plan{Expectations: make(map[string]*Expectation, cfg.Recruiters)}

	for r := 0; r < cfg.Recruiters; r++ {
		email := "recruiter-" + strings.Split(uuid.NewString(), "-")[0] + "@sim.headhunt.io"
		exp := &Expectation{Email: email}
		plan.Expectations[email] = exp

		for p := 0; p < cfg.ProposalsPerRecruiter; p++ {
			path := paths[rng.Intn(len(paths))]
			plan.Jobs = append(plan.Jobs, Job{
				Recruiter: email,
				Company:   "hr-" + strings.Split(uuid.NewString(), "-")[0] + "@sim.headhunt.io",
				JobOffer:  uuid.NewString(),
				Candidate: "candidate " + uuid.NewString()[:8],
				Sector:    sectors[rng.Intn(len(sectors))],
				Path:      append([]string(nil), path...),
			})
			exp.add(path)
		}
	}

	rng.Shuffle(len(plan.Jobs), func(i, j int) { plan.Jobs[i], plan.Jobs[j] = plan.Jobs[j], plan.Jobs[i] })
	return plan
}

func (e *Expectation) add(path []string) {
	e.Total++
	for _, st := range path {
		switch st {
		case "approved":
			e.Accepted++
		case "hired":
			e.Hired++
		}
	}
}
