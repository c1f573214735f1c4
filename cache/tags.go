package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Cache tags understood by the serving layer.
const (
	TagAllTimeStats      = "all_time_stats"
	TagPlayerProfiles    = "player_profiles"
	TagSeasonStats       = "season_stats"
	TagHalfSeasonStats   = "half_season_stats"
	TagRecentPerformance = "recent_performance"
	TagSeasonHonours     = "season_honours"
	TagHallOfFame        = "hall_of_fame"
	TagMatchReport       = "match_report"
	TagPowerRatings      = "power_ratings"
	TagUpcomingMatches   = "upcoming_matches"
)

var knownTags = map[string]struct{}{
	TagAllTimeStats:      {},
	TagPlayerProfiles:    {},
	TagSeasonStats:       {},
	TagHalfSeasonStats:   {},
	TagRecentPerformance: {},
	TagSeasonHonours:     {},
	TagHallOfFame:        {},
	TagMatchReport:       {},
	TagPowerRatings:      {},
	TagUpcomingMatches:   {},
}

var (
	ErrUnknownTag = errors.New("unknown cache tag")
	ErrNoTags     = errors.New("at least one cache tag is required")
)

// IsKnownTag reports whether tag is on the whitelist.
func IsKnownTag(tag string) bool {
	_, ok := knownTags[tag]
	return ok
}

// KnownTags returns the whitelist in sorted order.
func KnownTags() []string {
	out := make([]string, 0, len(knownTags))
	for t := range knownTags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ValidateTags fails if any tag is not whitelisted. Nothing is partially accepted.
func ValidateTags(tags []string) error {
	if len(tags) == 0 {
		return ErrNoTags
	}
	var unknown []string
	for _, t := range tags {
		if !IsKnownTag(t) {
			unknown = append(unknown, t)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTag, strings.Join(unknown, ", "))
	}
	return nil
}

// dedupe keeps the first occurrence of each tag.
func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
