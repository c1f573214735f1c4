package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dosada05/matchday/middleware"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/services"
	"github.com/google/uuid"
)

type StatsJobHandler struct {
	jobService services.StatsJobService
}

func NewStatsJobHandler(js services.StatsJobService) *StatsJobHandler {
	return &StatsJobHandler{jobService: js}
}

type createJobInput struct {
	RequestID string `json:"requestId"`
	MatchID   *int   `json:"matchId,omitempty"`
}

// ListHandler обрабатывает GET /stats/jobs?limit=n
func (h *StatsJobHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, err := middleware.GetTenantIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "tenant is missing from the access token")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			badRequestResponse(w, r, fmt.Errorf("limit must be between 1 and 200, got %q", raw))
			return
		}
	}

	jobs, err := h.jobService.ListJobs(r.Context(), tenantID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"jobs": jobs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetHandler обрабатывает GET /stats/jobs/{jobID}
func (h *StatsJobHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, jobID, ok := tenantAndID(w, r, "jobID")
	if !ok {
		return
	}
	job, err := h.jobService.GetJob(r.Context(), tenantID, jobID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"job": job}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateHandler обрабатывает POST /stats/jobs - ручной запуск пересчёта.
func (h *StatsJobHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, err := middleware.GetTenantIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "tenant is missing from the access token")
		return
	}
	var input createJobInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	job, err := h.jobService.Enqueue(r.Context(), tenantID, services.EnqueueRequest{
		TriggeredBy: models.TriggerAdmin,
		RequestID:   input.RequestID,
		MatchID:     input.MatchID,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusAccepted, jsonResponse{"job": job}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RetryHandler обрабатывает POST /stats/jobs/{jobID}/retry
func (h *StatsJobHandler) RetryHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, jobID, ok := tenantAndID(w, r, "jobID")
	if !ok {
		return
	}
	job, err := h.jobService.Retry(r.Context(), tenantID, jobID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusAccepted, jsonResponse{"job": job}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecomputeAllHandler обрабатывает POST /admin/stats/recompute-all (только superadmin).
func (h *StatsJobHandler) RecomputeAllHandler(w http.ResponseWriter, r *http.Request) {
	batch := uuid.NewString()
	result, err := h.jobService.EnqueueAllTenants(r.Context(), models.TriggerAdmin, func(tenantID models.TenantID) string {
		return fmt.Sprintf("admin-all:%s:%d", batch, tenantID)
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusAccepted, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
