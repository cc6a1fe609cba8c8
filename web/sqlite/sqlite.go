// Package sqlite persists facilities, jobs and job logs in a single SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/nihatbirbudak/Hotel-Lead-Builder/facility"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/web"
)

const facilitySchema = `
	CREATE TABLE IF NOT EXISTS facilities (
		id TEXT PRIMARY KEY,
		raw_id TEXT,
		name TEXT NOT NULL,
		city TEXT,
		district TEXT,
		type TEXT,
		address TEXT,
		website TEXT NOT NULL DEFAULT '',
		website_source TEXT NOT NULL DEFAULT '',
		website_score REAL NOT NULL DEFAULT 0,
		website_status TEXT NOT NULL DEFAULT 'pending',
		email TEXT NOT NULL DEFAULT '',
		email_source TEXT NOT NULL DEFAULT '',
		email_status TEXT NOT NULL DEFAULT 'pending'
	);
	CREATE INDEX IF NOT EXISTS idx_facilities_raw_id ON facilities(raw_id);
	CREATE INDEX IF NOT EXISTS idx_facilities_city ON facilities(city);
	CREATE INDEX IF NOT EXISTS idx_facilities_type ON facilities(type);
`

const jobSchema = `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		job_type TEXT NOT NULL,
		status TEXT NOT NULL,
		total_items INTEGER NOT NULL DEFAULT 0,
		processed_items INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS job_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_job_logs_job_id ON job_logs(job_id);
`

// Repository implements web.FacilityRepository and web.JobRepository on a
// shared SQLite handle.
type Repository struct {
	db *sql.DB
}

var (
	_ web.FacilityRepository = (*Repository)(nil)
	_ web.JobRepository      = (*Repository)(nil)
)

// New opens (or creates) the database at path and ensures the schema exists.
func New(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL keeps readers unblocked while job workers commit.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	r := &Repository{db: db}

	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return r, nil
}

func (r *Repository) migrate() error {
	for _, schema := range []string{facilitySchema, jobSchema} {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}

	return nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// ---- facilities ----

const facilityColumns = `id, raw_id, name, city, district, type, address,
	website, website_source, website_score, website_status,
	email, email_source, email_status`

func scanFacility(row interface{ Scan(...any) error }) (facility.Facility, error) {
	var f facility.Facility

	err := row.Scan(
		&f.ID, &f.RawID, &f.Name, &f.City, &f.District, &f.Type, &f.Address,
		&f.Website, &f.WebsiteSource, &f.WebsiteScore, &f.WebsiteStatus,
		&f.Email, &f.EmailSource, &f.EmailStatus,
	)

	return f, err
}

func (r *Repository) queryFacilities(ctx context.Context, query string, args ...any) ([]facility.Facility, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []facility.Facility

	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, f)
	}

	return out, rows.Err()
}

// Upsert inserts the facility, or refreshes the catalog columns of the
// existing row with the same raw_id. Enrichment columns are left untouched
// on update.
func (r *Repository) Upsert(ctx context.Context, f *facility.Facility) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, err
	}

	if f.RawID != "" {
		existing, err := r.GetByRawID(ctx, f.RawID)
		if err == nil {
			_, err = r.db.ExecContext(ctx,
				`UPDATE facilities SET name=?, city=?, district=?, type=?, address=? WHERE id=?`,
				f.Name, f.City, f.District, f.Type, f.Address, existing.ID,
			)

			return false, err
		}

		if !errors.Is(err, web.ErrNotFound) {
			return false, err
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO facilities (`+facilityColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.RawID, f.Name, f.City, f.District, f.Type, f.Address,
		f.Website, f.WebsiteSource, f.WebsiteScore, f.WebsiteStatus,
		f.Email, f.EmailSource, f.EmailStatus,
	)

	return true, err
}

// Get fetches a facility by ID.
func (r *Repository) Get(ctx context.Context, id string) (facility.Facility, error) {
	f, err := scanFacility(r.db.QueryRowContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return f, web.ErrNotFound
	}

	return f, err
}

// GetByRawID fetches a facility by its catalog ID.
func (r *Repository) GetByRawID(ctx context.Context, rawID string) (facility.Facility, error) {
	f, err := scanFacility(r.db.QueryRowContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE raw_id = ?`, rawID))
	if errors.Is(err, sql.ErrNoRows) {
		return f, web.ErrNotFound
	}

	return f, err
}

// Update writes all mutable columns of a facility.
func (r *Repository) Update(ctx context.Context, f *facility.Facility) error {
	if err := f.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE facilities SET raw_id=?, name=?, city=?, district=?, type=?, address=?,
			website=?, website_source=?, website_score=?, website_status=?,
			email=?, email_source=?, email_status=?
		 WHERE id=?`,
		f.RawID, f.Name, f.City, f.District, f.Type, f.Address,
		f.Website, f.WebsiteSource, f.WebsiteScore, f.WebsiteStatus,
		f.Email, f.EmailSource, f.EmailStatus,
		f.ID,
	)

	return err
}

func statusFilterClause(statusFilter string) string {
	switch statusFilter {
	case "pending":
		return ` AND website = '' AND (website_status = '' OR website_status = 'pending')`
	case "not_found":
		return ` AND website_status = 'not_found'`
	case "has_website":
		return ` AND website != '' AND email = ''`
	case "has_email":
		return ` AND website != '' AND email != ''`
	}

	return ""
}

// Select lists facilities matching a filter, returning the page plus the
// total match count.
func (r *Repository) Select(ctx context.Context, filter web.FacilityFilter) ([]facility.Facility, int, error) {
	where := ` WHERE 1=1` + statusFilterClause(filter.StatusFilter)

	var args []any

	if filter.City != "" {
		where += ` AND city = ?`
		args = append(args, filter.City)
	}

	if filter.Type != "" {
		where += ` AND type = ?`
		args = append(args, filter.Type)
	}

	if filter.Search != "" {
		where += ` AND (name LIKE ? OR city LIKE ?)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facilities`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}

	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}

	args = append(args, limit, (page-1)*limit)

	items, err := r.queryFacilities(ctx,
		`SELECT `+facilityColumns+` FROM facilities`+where+` ORDER BY name LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// Stats counts facilities per dashboard tab.
func (r *Repository) Stats(ctx context.Context) (web.FacilityStats, error) {
	var stats web.FacilityStats

	queries := []struct {
		dest  *int
		query string
	}{
		{&stats.Total, `SELECT COUNT(*) FROM facilities`},
		{&stats.Pending, `SELECT COUNT(*) FROM facilities WHERE website = '' AND (website_status = '' OR website_status = 'pending')`},
		{&stats.NotFound, `SELECT COUNT(*) FROM facilities WHERE website_status = 'not_found'`},
		{&stats.HasWebsite, `SELECT COUNT(*) FROM facilities WHERE website != '' AND email = ''`},
		{&stats.HasEmail, `SELECT COUNT(*) FROM facilities WHERE website != '' AND email != ''`},
	}

	for _, q := range queries {
		if err := r.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// DocumentTypes lists the distinct document types by frequency.
func (r *Repository) DocumentTypes(ctx context.Context) ([]web.TypeCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, COUNT(id) AS count FROM facilities WHERE type != '' GROUP BY type ORDER BY count DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []web.TypeCount

	for rows.Next() {
		var tc web.TypeCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}

		out = append(out, tc)
	}

	return out, rows.Err()
}

// MissingWebsite lists discovery targets.
func (r *Repository) MissingWebsite(ctx context.Context) ([]facility.Facility, error) {
	return r.queryFacilities(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE website = '' AND website_status != 'not_found'`)
}

// MissingEmail lists email-crawl targets.
func (r *Repository) MissingEmail(ctx context.Context) ([]facility.Facility, error) {
	return r.queryFacilities(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE website != '' AND email = '' AND email_status != 'not_found'`)
}

// ByIDs fetches an explicit facility set.
func (r *Repository) ByIDs(ctx context.Context, ids []string) ([]facility.Facility, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return r.queryFacilities(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id IN (`+placeholders+`)`, args...)
}

// All lists every facility, optionally restricted to one city.
func (r *Repository) All(ctx context.Context, city string) ([]facility.Facility, error) {
	if city != "" {
		return r.queryFacilities(ctx,
			`SELECT `+facilityColumns+` FROM facilities WHERE city = ? ORDER BY name`, city)
	}

	return r.queryFacilities(ctx, `SELECT `+facilityColumns+` FROM facilities ORDER BY name`)
}

// Reset drops and recreates the facility table.
func (r *Repository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DROP TABLE IF EXISTS facilities`); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, facilitySchema)

	return err
}

// ---- jobs ----

// Create inserts a job.
func (r *Repository) Create(ctx context.Context, job *web.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, job_type, status, total_items, processed_items, error_count, created_at, finished_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		job.ID, job.JobType, job.Status, job.TotalItems, job.ProcessedItems, job.ErrorCount,
		job.CreatedAt.UTC(), nullableTime(job.FinishedAt),
	)

	return err
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UTC()
}

func scanJob(row interface{ Scan(...any) error }) (web.Job, error) {
	var (
		job      web.Job
		finished sql.NullTime
	)

	err := row.Scan(&job.ID, &job.JobType, &job.Status, &job.TotalItems, &job.ProcessedItems,
		&job.ErrorCount, &job.CreatedAt, &finished)
	if err != nil {
		return job, err
	}

	if finished.Valid {
		t := finished.Time
		job.FinishedAt = &t
	}

	return job, nil
}

// Get fetches a job by ID.
func (r *Repository) Get(ctx context.Context, id string) (web.Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx,
		`SELECT id, job_type, status, total_items, processed_items, error_count, created_at, finished_at
		 FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return job, web.ErrNotFound
	}

	return job, err
}

// Update writes the mutable job columns.
func (r *Repository) Update(ctx context.Context, job *web.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status=?, total_items=?, processed_items=?, error_count=?, finished_at=? WHERE id=?`,
		job.Status, job.TotalItems, job.ProcessedItems, job.ErrorCount, nullableTime(job.FinishedAt), job.ID,
	)

	return err
}

// Select lists jobs: running first, then queued, then newest first.
func (r *Repository) Select(ctx context.Context) ([]web.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, job_type, status, total_items, processed_items, error_count, created_at, finished_at
		 FROM jobs
		 ORDER BY CASE status WHEN 'running' THEN 0 WHEN 'queued' THEN 1 ELSE 2 END, created_at DESC
		 LIMIT 100`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []web.Job

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, job)
	}

	return out, rows.Err()
}

// AddLog appends a job log entry.
func (r *Repository) AddLog(ctx context.Context, log *web.JobLog) error {
	ts := log.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO job_logs (job_id, timestamp, level, message) VALUES (?,?,?,?)`,
		log.JobID, ts.UTC(), log.Level, log.Message,
	)

	return err
}

func (r *Repository) queryLogs(ctx context.Context, query string, args ...any) ([]web.JobLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []web.JobLog

	for rows.Next() {
		var l web.JobLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.Timestamp, &l.Level, &l.Message); err != nil {
			return nil, err
		}

		out = append(out, l)
	}

	return out, rows.Err()
}

// Logs returns the most recent limit entries in chronological order.
func (r *Repository) Logs(ctx context.Context, jobID string, limit int) ([]web.JobLog, error) {
	if limit <= 0 {
		limit = 200
	}

	logs, err := r.queryLogs(ctx,
		`SELECT id, job_id, timestamp, level, message FROM job_logs
		 WHERE job_id = ? ORDER BY id DESC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}

	return logs, nil
}

// CountLogs counts entries at a level with an optional message prefix.
func (r *Repository) CountLogs(ctx context.Context, jobID, level, prefix string) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM job_logs WHERE job_id = ? AND level = ?`
	args := []any{jobID, level}

	if prefix != "" {
		query += ` AND message LIKE ?`
		args = append(args, prefix+"%")
	}

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)

	return count, err
}

// CompletionLogs returns the most recent outcome entries, newest first.
func (r *Repository) CompletionLogs(ctx context.Context, jobID string, limit int) ([]web.JobLog, error) {
	if limit <= 0 {
		limit = 20
	}

	return r.queryLogs(ctx,
		`SELECT id, job_id, timestamp, level, message FROM job_logs
		 WHERE job_id = ? AND level IN ('SUCCESS','WARNING','ERROR')
		 ORDER BY id DESC LIMIT ?`, jobID, limit)
}
