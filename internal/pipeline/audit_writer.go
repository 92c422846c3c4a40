package pipeline

import (
	"context"
	"fmt"
	"time"

	"dryer-fleet/monitor/internal/domain"
	"dryer-fleet/monitor/internal/metrics"
)

// RejectionArchive is the storage surface the audit writer needs.
type RejectionArchive interface {
	InsertRejectedBatch(ctx context.Context, batch []*domain.RejectedReading) error
}

// AuditWriter batches rejected readings into the forensics table so operators
// can inspect and replay malformed payloads.
type AuditWriter struct {
	ch        <-chan *domain.RejectedReading
	db        RejectionArchive
	batchSize int
	flushMS   int
}

func NewAuditWriter(
	ch <-chan *domain.RejectedReading,
	db RejectionArchive,
	batchSize int,
	flushMS int,
) *AuditWriter {
	return &AuditWriter{
		ch:        ch,
		db:        db,
		batchSize: batchSize,
		flushMS:   flushMS,
	}
}

func (w *AuditWriter) Run(ctx context.Context) {
	batch := make([]*domain.RejectedReading, 0, w.batchSize)
	ticker := time.NewTicker(time.Duration(w.flushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case rr, ok := <-w.ch:
			if !ok {
				if len(batch) > 0 {
					w.flush(ctx, batch)
				}
				return
			}
			batch = append(batch, rr)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			if len(batch) > 0 {
				w.flush(ctx, batch)
			}
			return
		}
	}
}

func (w *AuditWriter) flush(ctx context.Context, batch []*domain.RejectedReading) {
	err := w.db.InsertRejectedBatch(ctx, batch)
	if err != nil {
		fmt.Printf("Audit write failed (batch=%d), retrying: %v\n", len(batch), err)
		time.Sleep(500 * time.Millisecond)
		err = w.db.InsertRejectedBatch(ctx, batch)
		if err != nil {
			fmt.Printf("Audit write permanently failed (batch=%d): %v\n", len(batch), err)
			metrics.AuditWriteFails.Add(int64(len(batch)))
			return
		}
	}
}
