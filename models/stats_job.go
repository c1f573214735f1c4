package models

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type TriggerSource string

const (
	TriggerPostMatch TriggerSource = "post-match"
	TriggerAdmin     TriggerSource = "admin"
	TriggerCron      TriggerSource = "cron"
)

func (t TriggerSource) Valid() bool {
	return t == TriggerPostMatch || t == TriggerAdmin || t == TriggerCron
}

const JobTypeStatsUpdate = "stats_update"

// JobPayload - то, что кладётся в очередь при постановке задачи пересчёта.
type JobPayload struct {
	TriggeredBy TriggerSource `json:"triggeredBy"`
	TenantID    TenantID      `json:"tenantId"`
	RequestID   string        `json:"requestId"`
	MatchID     *int          `json:"matchId,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
)

type StepResult struct {
	Step       string     `json:"step"`
	Status     StepStatus `json:"status"`
	DurationMs int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// JobResults is persisted as JSONB. Steps always reflects the latest attempt.
type JobResults struct {
	Steps []StepResult               `json:"steps"`
	Cache *CacheInvalidationResponse `json:"cache,omitempty"`
}

// Succeeded counts successful steps.
func (r JobResults) Succeeded() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StepSuccess {
			n++
		}
	}
	return n
}

// Failed counts failed steps.
func (r JobResults) Failed() int {
	return len(r.Steps) - r.Succeeded()
}

// StatsJob - запись о задаче пересчёта статистики для одного клуба.
type StatsJob struct {
	ID           int        `json:"id"`
	TenantID     TenantID   `json:"tenant_id"`
	JobType      string     `json:"job_type"`
	Payload      JobPayload `json:"payload"`
	Status       JobStatus  `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	Results      JobResults `json:"results"`
	CreatedAt    time.Time  `json:"created_at"`
}
