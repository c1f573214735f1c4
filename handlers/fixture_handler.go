package handlers

import (
	"context"
	"net/http"

	"github.com/Dosada05/matchday/balancing"
	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/services"
)

// ProgressReader отдаёт текущий прогресс пересчёта по матчу.
type ProgressReader interface {
	Get(ctx context.Context, tenantID models.TenantID, fixtureID int) (*models.FixtureProgress, error)
}

type FixtureHandler struct {
	fixtureService services.FixtureService
	balanceService services.BalanceService
	progress       ProgressReader
}

func NewFixtureHandler(fs services.FixtureService, bs services.BalanceService, progress ProgressReader) *FixtureHandler {
	return &FixtureHandler{
		fixtureService: fs,
		balanceService: bs,
		progress:       progress,
	}
}

type lockPoolInput struct {
	StateVersion *int             `json:"state_version"`
	Sizes        *balancing.Sizes `json:"sizes,omitempty"`
}

type transitionFunc func(ctx context.Context, tenantID models.TenantID, id, version int) (*models.Fixture, error)

// GetHandler обрабатывает GET /fixtures/{fixtureID}
func (h *FixtureHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	fixture, err := h.fixtureService.GetFixture(r.Context(), tenantID, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"fixture": fixture}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LockPoolHandler обрабатывает PATCH /fixtures/{fixtureID}/lock-pool
func (h *FixtureHandler) LockPoolHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	var input lockPoolInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	version, err := versionInput{StateVersion: input.StateVersion}.version()
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	fixture, err := h.fixtureService.LockPool(r.Context(), tenantID, id, version, input.Sizes)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"fixture": fixture}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *FixtureHandler) ConfirmTeamsHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fixtureService.ConfirmTeams)
}

func (h *FixtureHandler) UnlockTeamsHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fixtureService.UnlockTeams)
}

func (h *FixtureHandler) UnlockPoolHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fixtureService.UnlockPool)
}

func (h *FixtureHandler) UndoCompletionHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fixtureService.UndoCompletion)
}

// transition - общий обработчик PATCH-переходов с телом {"state_version": n}.
func (h *FixtureHandler) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc) {
	tenantID, id, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	var input versionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	version, err := input.version()
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	fixture, err := apply(r.Context(), tenantID, id, version)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"fixture": fixture}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CompleteHandler обрабатывает PATCH /fixtures/{fixtureID}/complete
func (h *FixtureHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	var input services.CompleteInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.StateVersion < 1 {
		badRequestResponse(w, r, errStateVersionRequired)
		return
	}

	fixture, err := h.fixtureService.Complete(r.Context(), tenantID, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"fixture": fixture}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BalanceHandler обрабатывает POST /fixtures/{fixtureID}/balance
func (h *FixtureHandler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	var input services.BalanceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.StateVersion < 1 {
		badRequestResponse(w, r, errStateVersionRequired)
		return
	}

	outcome, err := h.balanceService.Balance(r.Context(), tenantID, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, outcome, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ProgressHandler обрабатывает GET /fixtures/{fixtureID}/progress
func (h *FixtureHandler) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	p, err := h.progress.Get(r.Context(), tenantID, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"progress": p}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
