// Package csvrows streams facility rows to CSV, emitting headers once per
// stream.
package csvrows

import (
	"context"
	"encoding/csv"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/facility"
)

// Writer consumes facilities from a channel and writes them as CSV rows.
type Writer struct {
	cw          *csv.Writer
	wroteHeader bool
}

// New constructs a CSV rows writer.
func New(cw *csv.Writer) *Writer {
	return &Writer{cw: cw}
}

// Run drains the channel until it closes or the context is cancelled.
func (w *Writer) Run(ctx context.Context, in <-chan *facility.Facility) error {
	defer w.cw.Flush()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-in:
			if !ok {
				return w.cw.Error()
			}

			if f == nil {
				continue
			}

			if !w.wroteHeader {
				if err := w.cw.Write(f.CsvHeaders()); err != nil {
					return err
				}

				w.wroteHeader = true
			}

			if err := w.cw.Write(f.CsvRow()); err != nil {
				return err
			}
		}
	}
}
