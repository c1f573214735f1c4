package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dosada05/matchday/services"
)

type PoolHandler struct {
	poolService services.PoolService
}

func NewPoolHandler(ps services.PoolService) *PoolHandler {
	return &PoolHandler{poolService: ps}
}

type attachInput struct {
	PlayerID     int  `json:"player_id"`
	StateVersion *int `json:"state_version"`
}

// GetPoolHandler обрабатывает GET /fixtures/{fixtureID}/pool
func (h *PoolHandler) GetPoolHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, fixtureID, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	view, err := h.poolService.GetPool(r.Context(), tenantID, fixtureID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AttachHandler обрабатывает POST /fixtures/{fixtureID}/pool
func (h *PoolHandler) AttachHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, fixtureID, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	var input attachInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.PlayerID <= 0 {
		badRequestResponse(w, r, errors.New("player_id is required"))
		return
	}
	version, err := versionInput{StateVersion: input.StateVersion}.version()
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	fixture, err := h.poolService.Attach(r.Context(), tenantID, fixtureID, input.PlayerID, version)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"fixture": fixture}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DetachHandler обрабатывает DELETE /fixtures/{fixtureID}/pool/{playerID}?state_version=n
func (h *PoolHandler) DetachHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, fixtureID, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	raw := r.URL.Query().Get("state_version")
	if raw == "" {
		badRequestResponse(w, r, errStateVersionRequired)
		return
	}
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		badRequestResponse(w, r, fmt.Errorf("invalid state_version: %q", raw))
		return
	}

	fixture, err := h.poolService.Detach(r.Context(), tenantID, fixtureID, playerID, version)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"fixture": fixture}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AssignSlotHandler обрабатывает PUT /fixtures/{fixtureID}/pool/{playerID}
func (h *PoolHandler) AssignSlotHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, fixtureID, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input services.SlotInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.StateVersion < 1 {
		badRequestResponse(w, r, errStateVersionRequired)
		return
	}

	fixture, err := h.poolService.AssignSlot(r.Context(), tenantID, fixtureID, playerID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"fixture": fixture}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ClearAssignmentsHandler обрабатывает POST /fixtures/{fixtureID}/pool/clear
func (h *PoolHandler) ClearAssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, fixtureID, ok := tenantAndID(w, r, "fixtureID")
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

	fixture, err := h.poolService.ClearAssignments(r.Context(), tenantID, fixtureID, version)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"fixture": fixture}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
