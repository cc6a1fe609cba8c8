package web

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/facility"
)

// Service wires the repositories behind the HTTP surface.
type Service struct {
	facilities FacilityRepository
	jobs       JobRepository

	// now is overridable in tests.
	now func() time.Time
}

// NewService creates a Service.
func NewService(facilities FacilityRepository, jobs JobRepository) *Service {
	return &Service{facilities: facilities, jobs: jobs, now: time.Now}
}

// UploadSummary reports the outcome of a catalog import.
type UploadSummary struct {
	Status       string         `json:"status"`
	ResetApplied bool           `json:"reset_applied"`
	TotalRows    int            `json:"total_rows"`
	Inserted     int            `json:"inserted"`
	Updated      int            `json:"updated"`
	SampleMapped map[string]any `json:"sample_mapped_row,omitempty"`
	Message      string         `json:"message"`
}

// Upload imports raw catalog rows, optionally resetting the facility table
// first. Rows upsert by their catalog ID.
func (s *Service) Upload(ctx context.Context, rows []map[string]any, reset bool) (UploadSummary, error) {
	summary := UploadSummary{Status: "success", ResetApplied: reset, TotalRows: len(rows)}

	if reset {
		if err := s.facilities.Reset(ctx); err != nil {
			return summary, err
		}
	}

	for _, row := range rows {
		f := facility.FromUploadRow(row)

		inserted, err := s.facilities.Upsert(ctx, f)
		if err != nil {
			return summary, err
		}

		if inserted {
			summary.Inserted++
		} else {
			summary.Updated++
		}

		if summary.SampleMapped == nil {
			summary.SampleMapped = map[string]any{
				"raw_id": f.RawID, "name": f.Name, "city": f.City, "district": f.District,
			}
		}
	}

	summary.Message = "Imported " + strconv.Itoa(summary.Inserted) + " new facilities"

	return summary, nil
}

// FacilityPage is one page of a filtered listing.
type FacilityPage struct {
	Data  []facility.Facility `json:"data"`
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
}

// Facilities lists facilities for the table view.
func (s *Service) Facilities(ctx context.Context, filter FacilityFilter) (FacilityPage, error) {
	items, total, err := s.facilities.Select(ctx, filter)
	if err != nil {
		return FacilityPage{}, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}

	if items == nil {
		items = []facility.Facility{}
	}

	return FacilityPage{Data: items, Total: total, Page: page}, nil
}

// Stats returns the dashboard counters.
func (s *Service) Stats(ctx context.Context) (FacilityStats, error) {
	return s.facilities.Stats(ctx)
}

// DocumentTypes lists the distinct document types with counts.
func (s *Service) DocumentTypes(ctx context.Context) ([]TypeCount, error) {
	return s.facilities.DocumentTypes(ctx)
}

// CreateJob queues a new enrichment job.
func (s *Service) CreateJob(ctx context.Context, jobType string) (Job, error) {
	job := Job{
		ID:        uuid.New().String(),
		JobType:   jobType,
		Status:    StatusQueued,
		CreatedAt: s.now().UTC(),
	}

	if err := s.jobs.Create(ctx, &job); err != nil {
		return Job{}, err
	}

	return job, nil
}

// CancelJob requests cancellation of a queued or running job.
func (s *Service) CancelJob(ctx context.Context, id string) (Job, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}

	if job.Terminal() {
		return job, ErrJobTerminal
	}

	job.Status = StatusCancelled
	finished := s.now().UTC()
	job.FinishedAt = &finished

	if err := s.jobs.Update(ctx, &job); err != nil {
		return Job{}, err
	}

	return job, nil
}

// ErrJobTerminal rejects cancelling an already finished job.
var ErrJobTerminal = terminalError{}

type terminalError struct{}

func (terminalError) Error() string { return "job already finished" }

// JobSummary is one row in the jobs listing.
type JobSummary struct {
	Job
	WebsitesFound    int     `json:"websites_found"`
	WebsitesNotFound int     `json:"websites_not_found"`
	SuccessRate      float64 `json:"success_rate"`
	ElapsedSeconds   int     `json:"elapsed_seconds"`
}

// ReasonCount is one entry of the not-found reason histogram.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// JobStatus is the full live view of one job, derived on each request by
// rescanning the log tail.
type JobStatus struct {
	JobSummary
	EstimatedRemainingSeconds int           `json:"estimated_remaining_seconds"`
	Logs                      []JobLog      `json:"logs"`
	CurrentAction             string        `json:"current_action,omitempty"`
	CurrentItem               string        `json:"current_item,omitempty"`
	LastSuccess               string        `json:"last_success,omitempty"`
	LastWarning               string        `json:"last_warning,omitempty"`
	NotFoundReasons           []ReasonCount `json:"not_found_reasons"`
}

func (s *Service) summarize(ctx context.Context, job Job) (JobSummary, error) {
	found, err := s.jobs.CountLogs(ctx, job.ID, LevelSuccess, "Found:")
	if err != nil {
		return JobSummary{}, err
	}

	notFound, err := s.jobs.CountLogs(ctx, job.ID, LevelWarning, "Not found:")
	if err != nil {
		return JobSummary{}, err
	}

	end := s.now()
	if job.FinishedAt != nil {
		end = *job.FinishedAt
	}

	processed := job.ProcessedItems
	if processed < 1 {
		processed = 1
	}

	return JobSummary{
		Job:              job,
		WebsitesFound:    found,
		WebsitesNotFound: notFound,
		SuccessRate:      math.Round(float64(found)/float64(processed)*1000) / 10,
		ElapsedSeconds:   int(end.Sub(job.CreatedAt).Seconds()),
	}, nil
}

// Jobs lists all jobs with their derived counters.
func (s *Service) Jobs(ctx context.Context) ([]JobSummary, error) {
	jobs, err := s.jobs.Select(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]JobSummary, 0, len(jobs))

	for _, job := range jobs {
		summary, err := s.summarize(ctx, job)
		if err != nil {
			return nil, err
		}

		out = append(out, summary)
	}

	return out, nil
}

// JobStatus derives the live view of one job: elapsed time, the remaining
// estimate from the spacing of recent completion logs, the current action
// and the not-found reason histogram.
func (s *Service) JobStatus(ctx context.Context, id string) (JobStatus, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return JobStatus{}, err
	}

	summary, err := s.summarize(ctx, job)
	if err != nil {
		return JobStatus{}, err
	}

	logs, err := s.jobs.Logs(ctx, id, 200)
	if err != nil {
		return JobStatus{}, err
	}

	status := JobStatus{JobSummary: summary}

	if logs == nil {
		logs = []JobLog{}
	}

	status.Logs = logs

	// Prefer the first log as the start marker; job creation can predate the
	// actual work by a scheduling delay.
	if len(logs) > 0 {
		end := s.now()
		if job.FinishedAt != nil {
			end = *job.FinishedAt
		}

		status.ElapsedSeconds = int(end.Sub(logs[0].Timestamp).Seconds())
	}

	status.EstimatedRemainingSeconds = s.estimateRemaining(ctx, job, status.ElapsedSeconds)

	// Newest-first scan for the current action and last outcomes.
	for i := len(logs) - 1; i >= 0; i-- {
		log := logs[i]

		if status.CurrentAction == "" && strings.HasPrefix(log.Message, "Processing:") {
			status.CurrentAction = "processing"
			status.CurrentItem = strings.TrimSpace(strings.TrimPrefix(log.Message, "Processing:"))
		}

		if status.LastSuccess == "" && log.Level == LevelSuccess {
			status.LastSuccess = log.Message
		}

		if status.LastWarning == "" && log.Level == LevelWarning {
			status.LastWarning = log.Message
		}

		if status.CurrentAction != "" && status.LastSuccess != "" && status.LastWarning != "" {
			break
		}
	}

	status.NotFoundReasons = reasonHistogram(logs)

	return status, nil
}

func (s *Service) estimateRemaining(ctx context.Context, job Job, elapsedSeconds int) int {
	if job.TotalItems <= job.ProcessedItems {
		return 0
	}

	remaining := job.TotalItems - job.ProcessedItems

	completions, err := s.jobs.CompletionLogs(ctx, job.ID, 20)
	if err == nil && len(completions) >= 2 {
		newest := completions[0].Timestamp
		oldest := completions[len(completions)-1].Timestamp

		perItem := newest.Sub(oldest).Seconds() / float64(len(completions)-1)
		if perItem < 0.1 {
			perItem = 0.1
		}

		return int(perItem * float64(remaining))
	}

	if job.ProcessedItems > 0 {
		perItem := float64(elapsedSeconds) / float64(job.ProcessedItems)
		if perItem < 0.1 {
			perItem = 0.1
		}

		return int(perItem * float64(remaining))
	}

	return 0
}

func reasonHistogram(logs []JobLog) []ReasonCount {
	counts := make(map[string]int)

	for _, log := range logs {
		if log.Level != LevelWarning {
			continue
		}

		if _, after, ok := strings.Cut(log.Message, "reason:"); ok {
			counts[strings.TrimSpace(after)]++
		}
	}

	out := make([]ReasonCount, 0, len(counts))

	for reason, count := range counts {
		out = append(out, ReasonCount{Reason: reason, Count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}

		return out[i].Reason < out[j].Reason
	})

	return out
}

// Export lists the facilities for an export, optionally restricted to a city.
func (s *Service) Export(ctx context.Context, city string) ([]facility.Facility, error) {
	return s.facilities.All(ctx, city)
}
