package web

import (
	"context"
	"errors"
	"time"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/facility"
)

// Job lifecycle statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Job kinds.
const (
	JobTypeDiscovery  = "discovery"
	JobTypeEmailCrawl = "email_crawl"
)

// Job log levels.
const (
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// ErrNotFound is returned for unknown job or facility IDs.
var ErrNotFound = errors.New("not found")

// Job is one enrichment run over a set of facilities.
type Job struct {
	ID             string     `json:"job_id"`
	JobType        string     `json:"job_type"`
	Status         string     `json:"status"`
	TotalItems     int        `json:"total"`
	ProcessedItems int        `json:"done"`
	ErrorCount     int        `json:"errors"`
	CreatedAt      time.Time  `json:"created_at"`
	FinishedAt     *time.Time `json:"finished_at"`
}

// Terminal reports whether the job can no longer change state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}

	return false
}

func (j *Job) Validate() error {
	if j.ID == "" {
		return errors.New("missing id")
	}

	if j.JobType != JobTypeDiscovery && j.JobType != JobTypeEmailCrawl {
		return errors.New("invalid job type")
	}

	if j.Status == "" {
		return errors.New("missing status")
	}

	return nil
}

// JobLog is one append-only progress record. The message grammar
// ("Processing: …", "Found: …", "Not found: … | reason: …") doubles as the
// substrate for progress estimation.
type JobLog struct {
	ID        int64     `json:"-"`
	JobID     string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// JobRepository persists jobs and their logs.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (Job, error)
	Update(ctx context.Context, job *Job) error
	// Select lists jobs: running first, then queued, then by creation time
	// descending, capped at 100.
	Select(ctx context.Context) ([]Job, error)

	AddLog(ctx context.Context, log *JobLog) error
	// Logs returns the most recent limit entries in chronological order.
	Logs(ctx context.Context, jobID string, limit int) ([]JobLog, error)
	// CountLogs counts entries for a job at a level whose message starts
	// with prefix (empty prefix counts all at that level).
	CountLogs(ctx context.Context, jobID, level, prefix string) (int, error)
	// CompletionLogs returns the most recent limit SUCCESS/WARNING/ERROR
	// entries, newest first.
	CompletionLogs(ctx context.Context, jobID string, limit int) ([]JobLog, error)
}

// FacilityFilter narrows a facility listing.
type FacilityFilter struct {
	Page         int
	Limit        int
	City         string
	Type         string
	Search       string
	StatusFilter string // pending | not_found | has_website | has_email
}

// FacilityStats are the per-tab counts shown on the dashboard.
type FacilityStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	NotFound   int `json:"not_found"`
	HasWebsite int `json:"has_website"`
	HasEmail   int `json:"has_email"`
}

// TypeCount is one document type with its frequency.
type TypeCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// FacilityRepository persists facilities.
type FacilityRepository interface {
	Upsert(ctx context.Context, f *facility.Facility) (inserted bool, err error)
	Get(ctx context.Context, id string) (facility.Facility, error)
	GetByRawID(ctx context.Context, rawID string) (facility.Facility, error)
	Update(ctx context.Context, f *facility.Facility) error
	Select(ctx context.Context, filter FacilityFilter) ([]facility.Facility, int, error)
	Stats(ctx context.Context) (FacilityStats, error)
	DocumentTypes(ctx context.Context) ([]TypeCount, error)

	// MissingWebsite lists facilities with no website that were not already
	// concluded not_found.
	MissingWebsite(ctx context.Context) ([]facility.Facility, error)
	// MissingEmail lists facilities with a website but no email that were
	// not already concluded not_found.
	MissingEmail(ctx context.Context) ([]facility.Facility, error)
	ByIDs(ctx context.Context, ids []string) ([]facility.Facility, error)
	All(ctx context.Context, city string) ([]facility.Facility, error)

	// Reset drops and recreates the facility table.
	Reset(ctx context.Context) error
}
