package pipeline

import (
	"context"
	"fmt"
	"time"

	"dryer-fleet/monitor/internal/domain"
	"dryer-fleet/monitor/internal/store"
)

type StateWriter struct {
	ch    <-chan *domain.SensorReading
	redis *store.RedisStore
}

func NewStateWriter(
	ch <-chan *domain.SensorReading,
	redis *store.RedisStore,
) *StateWriter {
	return &StateWriter{ch: ch, redis: redis}
}

func (w *StateWriter) Run(ctx context.Context) {
	batch := make([]*domain.SensorReading, 0, 100) // Redis is fast, fixed batch fine
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case reading, ok := <-w.ch:
			if !ok {
				w.flushBatch(ctx, batch)
				return
			}
			batch = append(batch, reading)
			if len(batch) >= 100 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			w.flushBatch(ctx, batch)
			return
		}
	}
}

func (w *StateWriter) flushBatch(ctx context.Context, batch []*domain.SensorReading) {
	for _, reading := range batch {
		if err := w.redis.PipelineStateUpdate(ctx, reading); err != nil {
			fmt.Printf("Redis state update failed for %s: %v\n", reading.DeviceID, err)
		}
	}
}
