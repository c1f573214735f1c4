package models

type CacheInvalidationRequest struct {
	Tags      []string `json:"tags"`
	Source    string   `json:"source"`
	RequestID string   `json:"requestId"`
}

// InvalidationOutcome distinguishes full, partial and total failure.
type InvalidationOutcome string

const (
	InvalidationFull    InvalidationOutcome = "full"
	InvalidationPartial InvalidationOutcome = "partial"
	InvalidationFailed  InvalidationOutcome = "failed"
)

type CacheInvalidationResponse struct {
	Success         bool                `json:"success"`
	Outcome         InvalidationOutcome `json:"outcome"`
	InvalidatedTags []string            `json:"invalidated_tags"`
	FailedTags      []string            `json:"failed_tags"`
	Error           string              `json:"error,omitempty"`
	RequestID       string              `json:"requestId,omitempty"`
}
