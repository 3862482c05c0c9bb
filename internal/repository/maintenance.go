package repository

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// PruneResult reports how many rows a retention pass deleted.
type PruneResult struct {
	SensorRows int64 `json:"sensor_rows"`
	EventRows  int64 `json:"event_rows"`
}

// Prune deletes sensor rows and control events older than cutoff (epoch
// seconds) and reports the counts.
func (s *Store) Prune(ctx context.Context, cutoff int64) (PruneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result PruneResult

	res, err := s.db.ExecContext(ctx, `DELETE FROM sensor_data WHERE timestamp < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("prune sensor data: %w", err)
	}
	result.SensorRows, _ = res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `DELETE FROM control_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("prune control events: %w", err)
	}
	result.EventRows, _ = res.RowsAffected()

	if result.SensorRows > 0 || result.EventRows > 0 {
		s.logger.Info("retention prune completed",
			zap.Int64("cutoff", cutoff),
			zap.Int64("sensor_rows", result.SensorRows),
			zap.Int64("event_rows", result.EventRows))
	}
	return result, nil
}

// DatabaseStats describes the stored history for the stats endpoint.
type DatabaseStats struct {
	SensorRows      int64  `json:"sensor_rows"`
	EventRows       int64  `json:"event_rows"`
	GrowCount       int64  `json:"grow_count"`
	OldestTimestamp *int64 `json:"oldest_timestamp"`
	NewestTimestamp *int64 `json:"newest_timestamp"`
	FileSizeBytes   int64  `json:"file_size_bytes"`
}

// Stats returns row counts, the covered time span and the file size. An
// in-memory database reports size 0.
func (s *Store) Stats(ctx context.Context) (DatabaseStats, error) {
	var stats DatabaseStats

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM sensor_data`).
		Scan(&stats.SensorRows, &stats.OldestTimestamp, &stats.NewestTimestamp)
	if err != nil {
		return stats, fmt.Errorf("sensor data stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM control_events`).Scan(&stats.EventRows); err != nil {
		return stats, fmt.Errorf("control event stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grows`).Scan(&stats.GrowCount); err != nil {
		return stats, fmt.Errorf("grow stats: %w", err)
	}

	if s.path != ":memory:" {
		if info, err := os.Stat(s.path); err == nil {
			stats.FileSizeBytes = info.Size()
		}
	}
	return stats, nil
}
