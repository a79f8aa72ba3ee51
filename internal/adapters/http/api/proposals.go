package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/headhunt/internal/domain/proposal"
)

// submitRequest mirrors the OpenAPI schema for POST /api/v1/proposals.
type submitRequest struct {
	RecruiterEmail         string     `json:"recruiter_email"`
	CompanyEmail           string     `json:"company_email"`
	JobOfferID             string     `json:"job_offer_id"`
	JobPublishedAt         *time.Time `json:"job_published_at"`
	CandidateName          string     `json:"candidate_name"`
	CandidateEmail         string     `json:"candidate_email"`
	CandidatePhone         string     `json:"candidate_phone"`
	CVURL                  string     `json:"cv_url"`
	Description            string     `json:"description"`
	Sector                 string     `json:"sector"`
	YearsExperience        int        `json:"years_experience"`
	ExpectedSalary         int64      `json:"expected_salary"`
	RecruiterFeePercentage float64    `json:"recruiter_fee_percentage"`
	Actor                  string     `json:"actor"`
}

func (req submitRequest) proposal() proposal.Proposal {
	return proposal.Proposal{
		RecruiterEmail:         req.RecruiterEmail,
		CompanyEmail:           req.CompanyEmail,
		JobOfferID:             req.JobOfferID,
		JobPublishedAt:         req.JobPublishedAt,
		CandidateName:          req.CandidateName,
		CandidateEmail:         req.CandidateEmail,
		CandidatePhone:         req.CandidatePhone,
		CVURL:                  req.CVURL,
		Description:            req.Description,
		Sector:                 req.Sector,
		YearsExperience:        req.YearsExperience,
		ExpectedSalary:         req.ExpectedSalary,
		RecruiterFeePercentage: req.RecruiterFeePercentage,
	}
}

type transitionRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

func (s *Server) handleSubmitProposal(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_proposal"
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	res, err := s.deps.SubmitProposal(r.Context(), req.proposal(), req.Actor)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	w.Header().Set("Location", "/api/v1/proposals/"+res.Proposal.ID)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_proposal"
	p, err := s.deps.GetProposal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	const op = "api.transition"
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		s.fail(w, r, op, fmt.Errorf("%w: missing status", ErrBadRequest))
		return
	}
	next, ok := proposal.ParseStatus(req.Status)
	if !ok {
		// unknown names are refused by the state machine as invalid transitions
		next = proposal.Status(req.Status)
	}
	res, err := s.deps.Transition(r.Context(), chi.URLParam(r, "id"), next, req.Actor)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteProposal(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_proposal"
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		actor = "admin"
	}
	if err := s.deps.DeleteProposal(r.Context(), chi.URLParam(r, "id"), actor); err != nil {
		s.fail(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
