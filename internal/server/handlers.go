// internal/server/handlers.go
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"lead-radar/internal/common/errors"
	"lead-radar/internal/pipeline"
	"lead-radar/internal/pipeline/ingest"
	"lead-radar/internal/pipeline/review"
)

const defaultRecentLimit = 50

type scrapeRequest struct {
	Portfolio string `json:"portfolio,omitempty"`
	TimeRange string `json:"time_range,omitempty"`
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

// outcomeResponse wraps a review outcome with the delivery error, which the
// outcome itself keeps out of JSON.
type outcomeResponse struct {
	*review.Outcome
	NotifyError string `json:"notify_error,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleScrape runs a cycle synchronously and returns the summaries. An
// empty portfolio means every configured portfolio.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")
			return
		}
	}

	if req.TimeRange != "" {
		if err := ingest.ValidateTimeRange(req.TimeRange); err != nil {
			s.writeStandardError(w, err)
			return
		}
	}

	var summaries []*pipeline.Summary
	if req.Portfolio == "" {
		all, err := s.scraper.RunAll(r.Context(), req.TimeRange)
		if err != nil {
			s.writeStandardError(w, err)
			return
		}
		summaries = all
	} else {
		companies, ok := s.config.Portfolios[req.Portfolio]
		if !ok {
			s.writeError(w, http.StatusNotFound, "PORTFOLIO_NOT_FOUND", "unknown portfolio: "+req.Portfolio)
			return
		}
		summary, err := s.scraper.Run(r.Context(), req.Portfolio, companies, req.TimeRange)
		if err != nil {
			s.writeStandardError(w, err)
			return
		}
		summaries = []*pipeline.Summary{summary}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"summaries": summaries})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	leads := s.queue.Pending(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"leads": leads,
		"count": len(leads),
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.recent == nil {
		s.writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "lead history requires database connectivity")
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	leads, err := s.recent.Recent(r.Context(), r.URL.Query().Get("company"), limit)
	if err != nil {
		s.writeStandardError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"leads": leads,
		"count": len(leads),
	})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.queue.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStandardError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")
		return
	}

	decision := review.Decision(req.Decision)
	if decision != review.DecisionApprove && decision != review.DecisionReject {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "decision must be \"approve\" or \"reject\"")
		return
	}

	outcome, err := s.queue.Decide(r.Context(), r.PathValue("id"), decision)
	if err != nil {
		s.writeStandardError(w, err)
		return
	}

	s.writeOutcome(w, outcome)
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.queue.ResendNotification(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStandardError(w, err)
		return
	}
	s.writeOutcome(w, outcome)
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"portfolios": s.config.Portfolios})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.queue.LimitedMode() {
		status = "limited"
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": status})
}

// writeOutcome returns 200 for a clean decision and 202 when the decision
// stands but delivery is still pending a resend.
func (s *Server) writeOutcome(w http.ResponseWriter, outcome *review.Outcome) {
	resp := outcomeResponse{Outcome: outcome}
	status := http.StatusOK
	if outcome.NotifyErr != nil {
		resp.NotifyError = outcome.NotifyErr.Error()
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeStandardError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeLeadNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeLeadAlreadyDecided:
		status = http.StatusConflict
	case errors.ErrCodeInvalidTimeRange:
		status = http.StatusBadRequest
	case errors.ErrCodeCollaboratorUnavailable, errors.ErrCodeFeedFetchFailed:
		status = http.StatusBadGateway
	}

	message := err.Error()
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	s.writeError(w, status, string(code), message)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}
