package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Dosada05/matchday/models"
)

var ErrTenantRequired = errors.New("tenant id is required for cache invalidation")

// TagPurger drops everything cached under one tag for one tenant.
type TagPurger interface {
	Purge(ctx context.Context, tenantID models.TenantID, tag string) error
}

type Invalidator struct {
	purger TagPurger
	logger *slog.Logger
}

func NewInvalidator(purger TagPurger, logger *slog.Logger) *Invalidator {
	return &Invalidator{purger: purger, logger: logger}
}

// Invalidate validates the whole request before touching the cache, then purges each
// tag independently. The returned response is always non-nil; err is set only for
// requests rejected up front (unknown tag, no tags, no tenant).
func (i *Invalidator) Invalidate(ctx context.Context, tenantID models.TenantID, req models.CacheInvalidationRequest) (*models.CacheInvalidationResponse, error) {
	tags := dedupe(req.Tags)
	resp := &models.CacheInvalidationResponse{
		Outcome:         models.InvalidationFailed,
		InvalidatedTags: []string{},
		FailedTags:      []string{},
		RequestID:       req.RequestID,
	}

	if !tenantID.Valid() {
		resp.FailedTags = tags
		resp.Error = ErrTenantRequired.Error()
		return resp, ErrTenantRequired
	}
	if err := ValidateTags(tags); err != nil {
		resp.FailedTags = tags
		resp.Error = err.Error()
		i.logger.WarnContext(ctx, "Cache invalidation rejected",
			slog.Int("tenant_id", int(tenantID)),
			slog.String("source", req.Source),
			slog.String("request_id", req.RequestID),
			slog.Any("error", err))
		return resp, err
	}

	for _, tag := range tags {
		if err := i.purger.Purge(ctx, tenantID, tag); err != nil {
			i.logger.WarnContext(ctx, "Failed to purge cache tag",
				slog.Int("tenant_id", int(tenantID)),
				slog.String("tag", tag),
				slog.String("request_id", req.RequestID),
				slog.Any("error", err))
			resp.FailedTags = append(resp.FailedTags, tag)
			continue
		}
		resp.InvalidatedTags = append(resp.InvalidatedTags, tag)
	}

	switch {
	case len(resp.FailedTags) == 0:
		resp.Outcome = models.InvalidationFull
		resp.Success = true
	case len(resp.InvalidatedTags) > 0:
		resp.Outcome = models.InvalidationPartial
		resp.Error = fmt.Sprintf("%d of %d tags could not be invalidated", len(resp.FailedTags), len(tags))
	default:
		resp.Error = "no tags could be invalidated"
	}
	return resp, nil
}

// HTTPStatus maps an outcome to the status returned by the invalidation endpoint.
func HTTPStatus(outcome models.InvalidationOutcome) int {
	switch outcome {
	case models.InvalidationFull:
		return http.StatusOK
	case models.InvalidationPartial:
		return http.StatusMultiStatus
	default:
		return http.StatusBadGateway
	}
}
