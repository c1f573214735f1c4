package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Dosada05/matchday/cache"
	"github.com/Dosada05/matchday/middleware"
	"github.com/Dosada05/matchday/models"
	"github.com/go-chi/chi/v5"
)

type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID models.TenantID, req models.CacheInvalidationRequest) (*models.CacheInvalidationResponse, error)
}

// GenerationReader returns the current generation of a tenant's tag.
type GenerationReader interface {
	Generation(ctx context.Context, tenantID models.TenantID, tag string) (int64, error)
}

type CacheHandler struct {
	invalidator CacheInvalidator
	generations GenerationReader
}

func NewCacheHandler(invalidator CacheInvalidator, generations GenerationReader) *CacheHandler {
	return &CacheHandler{invalidator: invalidator, generations: generations}
}

// InvalidateHandler обрабатывает POST /cache/invalidate.
// 200 - все теги сброшены, 207 - часть, 400 - запрос отклонён целиком, 502 - ни одного.
func (h *CacheHandler) InvalidateHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, err := middleware.GetTenantIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "tenant is missing from the access token")
		return
	}
	var input models.CacheInvalidationRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	resp, err := h.invalidator.Invalidate(r.Context(), tenantID, input)
	status := http.StatusBadRequest
	if err == nil {
		status = cache.HTTPStatus(resp.Outcome)
	}
	if err := writeJSON(w, status, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListTagsHandler обрабатывает GET /cache/tags
func (h *CacheHandler) ListTagsHandler(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tags": cache.KnownTags()}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerationHandler обрабатывает GET /cache/tags/{tag}
func (h *CacheHandler) GenerationHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, err := middleware.GetTenantIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "tenant is missing from the access token")
		return
	}
	tag := chi.URLParam(r, "tag")
	if !cache.IsKnownTag(tag) {
		badRequestResponse(w, r, fmt.Errorf("%w: %q", cache.ErrUnknownTag, tag))
		return
	}

	gen, err := h.generations.Generation(r.Context(), tenantID, tag)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tag": tag, "generation": gen}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
