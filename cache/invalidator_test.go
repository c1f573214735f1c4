package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/Dosada05/matchday/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPurger struct {
	purged []string
	fail   map[string]bool
}

func (p *recordingPurger) Purge(_ context.Context, _ models.TenantID, tag string) error {
	if p.fail[tag] {
		return errors.New("connection reset")
	}
	p.purged = append(p.purged, tag)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInvalidate_FullSuccess(t *testing.T) {
	purger := &recordingPurger{}
	inv := NewInvalidator(purger, discardLogger())

	resp, err := inv.Invalidate(context.Background(), 7, models.CacheInvalidationRequest{
		Tags:      []string{TagAllTimeStats, TagPlayerProfiles, TagAllTimeStats},
		Source:    "stats-job",
		RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.InvalidationFull, resp.Outcome)
	assert.Equal(t, []string{TagAllTimeStats, TagPlayerProfiles}, resp.InvalidatedTags)
	assert.Empty(t, resp.FailedTags)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, http.StatusOK, HTTPStatus(resp.Outcome))
}

func TestInvalidate_UnknownTagRejectsWholeRequest(t *testing.T) {
	purger := &recordingPurger{}
	inv := NewInvalidator(purger, discardLogger())

	tags := []string{TagSeasonStats, TagRecentPerformance, "players_v2", TagPowerRatings, TagMatchReport}
	resp, err := inv.Invalidate(context.Background(), 7, models.CacheInvalidationRequest{Tags: tags})

	assert.ErrorIs(t, err, ErrUnknownTag)
	assert.Contains(t, err.Error(), "players_v2")
	assert.Empty(t, purger.purged, "no tag may be purged when the request is rejected")
	assert.False(t, resp.Success)
	assert.Equal(t, models.InvalidationFailed, resp.Outcome)
	assert.Empty(t, resp.InvalidatedTags)
	assert.Equal(t, tags, resp.FailedTags)
}

func TestInvalidate_PartialOutcome(t *testing.T) {
	purger := &recordingPurger{fail: map[string]bool{TagHallOfFame: true}}
	inv := NewInvalidator(purger, discardLogger())

	resp, err := inv.Invalidate(context.Background(), 7, models.CacheInvalidationRequest{
		Tags: []string{TagSeasonHonours, TagHallOfFame},
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, models.InvalidationPartial, resp.Outcome)
	assert.Equal(t, []string{TagSeasonHonours}, resp.InvalidatedTags)
	assert.Equal(t, []string{TagHallOfFame}, resp.FailedTags)
	assert.Equal(t, http.StatusMultiStatus, HTTPStatus(resp.Outcome))
}

func TestInvalidate_TotalFailure(t *testing.T) {
	purger := &recordingPurger{fail: map[string]bool{TagMatchReport: true}}
	inv := NewInvalidator(purger, discardLogger())

	resp, err := inv.Invalidate(context.Background(), 7, models.CacheInvalidationRequest{Tags: []string{TagMatchReport}})
	require.NoError(t, err)
	assert.Equal(t, models.InvalidationFailed, resp.Outcome)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(resp.Outcome))
}

func TestInvalidate_RequiresTenantAndTags(t *testing.T) {
	inv := NewInvalidator(&recordingPurger{}, discardLogger())

	_, err := inv.Invalidate(context.Background(), 0, models.CacheInvalidationRequest{Tags: []string{TagMatchReport}})
	assert.ErrorIs(t, err, ErrTenantRequired)

	_, err = inv.Invalidate(context.Background(), 7, models.CacheInvalidationRequest{})
	assert.ErrorIs(t, err, ErrNoTags)
}

func TestKnownTags_Sorted(t *testing.T) {
	tags := KnownTags()
	assert.Len(t, tags, 10)
	assert.IsIncreasing(t, tags)
	assert.Contains(t, tags, TagUpcomingMatches)
}
