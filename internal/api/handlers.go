package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/colively/campaign-engine/internal/campaign"
	"github.com/colively/campaign-engine/internal/domain"
	"github.com/colively/campaign-engine/internal/pkg/logger"
)

// previewCandidates bounds the best-of-country query behind the preview.
const previewCandidates = 5

// triggerRequest is the manual trigger payload.
type triggerRequest struct {
	TestMode  bool   `json:"test_mode"`
	TestEmail string `json:"test_email"`
	Limit     int    `json:"limit"`
}

// triggerResponse reports the synchronous run outcome.
type triggerResponse struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	RunID                string `json:"run_id"`
	Status               string `json:"status"`
	SubscribersProcessed int    `json:"subscribers_processed"`
	EmailsSent           int    `json:"emails_sent"`
	EmailsFailed         int    `json:"emails_failed"`
}

// requireToken guards the /api subtree with the static operator token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.TriggerToken == "" {
			writeError(w, http.StatusServiceUnavailable, "trigger token not configured")
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.config.TriggerToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleTrigger runs the campaign synchronously and reports the outcome.
//
//	POST /api/campaign/trigger
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TestMode {
		if _, err := mail.ParseAddress(req.TestEmail); err != nil {
			writeError(w, http.StatusBadRequest, "test_mode requires a valid test_email")
			return
		}
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be non-negative")
		return
	}

	logger.Info("manual trigger received", "test_mode", req.TestMode, "limit", req.Limit)
	run := s.runner.RunManual(r.Context(), campaign.ManualOptions{
		TestMode:  req.TestMode,
		TestEmail: req.TestEmail,
		Limit:     req.Limit,
	})

	writeJSON(w, http.StatusOK, triggerResponse{
		Success:              run.Status != domain.RunFailed,
		Message:              "campaign run " + string(run.Status),
		RunID:                run.ID,
		Status:               string(run.Status),
		SubscribersProcessed: run.SubscribersProcessed,
		EmailsSent:           run.EmailsSent,
		EmailsFailed:         run.EmailsFailed,
	})
}

// handlePreview renders the email for the top listing of a country without
// sending anything.
//
//	GET /api/regions/{code}/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	if len(code) != 2 {
		writeError(w, http.StatusBadRequest, "region code must be 2 letters")
		return
	}

	listings, err := s.preview.TopListingsByCountry(r.Context(), code, previewCandidates)
	if err != nil {
		logger.Error("preview query failed", "code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "listing query failed")
		return
	}
	if len(listings) == 0 {
		writeError(w, http.StatusNotFound, "no active listings for region")
		return
	}

	rec, ok := s.assembler.Assemble(r.Context(), listings[0].ID, code)
	if !ok {
		writeError(w, http.StatusInternalServerError, "recommendation assembly failed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.renderer.HTML(nil, rec)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "message": msg})
}
