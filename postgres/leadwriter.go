// Package postgres mirrors enriched facilities into a Postgres table for
// downstream consumers. The writer batches JSON payloads and flushes on size
// or age.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/nihatbirbudak/Hotel-Lead-Builder/facility"
)

// Open connects to Postgres and ensures the leads table exists.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS leads (
			id BIGSERIAL PRIMARY KEY,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// LeadWriter batches facility payloads into the leads table.
type LeadWriter struct {
	db *sql.DB
}

// NewLeadWriter creates a LeadWriter over an open connection.
func NewLeadWriter(db *sql.DB) *LeadWriter {
	return &LeadWriter{db: db}
}

// Run consumes facilities until the channel closes, flushing every 50 rows
// or when a row arrives a minute or more after the last flush. The remaining
// rows are flushed when the channel closes.
func (w *LeadWriter) Run(ctx context.Context, in <-chan *facility.Facility) error {
	const maxBatchSize = 50

	buff := make([]*facility.Facility, 0, maxBatchSize)
	lastSave := time.Now().UTC()

	for f := range in {
		if f == nil {
			continue
		}

		buff = append(buff, f)

		if len(buff) >= maxBatchSize || time.Since(lastSave) >= time.Minute {
			if err := w.batchSave(ctx, buff); err != nil {
				return err
			}

			buff = buff[:0]
			lastSave = time.Now().UTC()
		}
	}

	if len(buff) > 0 {
		return w.batchSave(ctx, buff)
	}

	return nil
}

func (w *LeadWriter) batchSave(ctx context.Context, facilities []*facility.Facility) error {
	if len(facilities) == 0 {
		return nil
	}

	elements := make([]string, 0, len(facilities))
	args := make([]any, 0, len(facilities))

	for i, f := range facilities {
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}

		elements = append(elements, fmt.Sprintf("($%d)", i+1))
		args = append(args, data)
	}

	q := `INSERT INTO leads (data) VALUES ` + strings.Join(elements, ", ") + ` ON CONFLICT DO NOTHING`

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return err
	}

	return tx.Commit()
}
