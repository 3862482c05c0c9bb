package repository

import (
	"context"
	"fmt"

	"github.com/jereantequera/Autocann/internal/models"
)

// AppendControlEvent writes one actuator transition row.
func (s *Store) AppendControlEvent(ctx context.Context, ev *models.ControlEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO control_events (timestamp, datetime, actuator, action, trigger_value)
		VALUES (?, ?, ?, ?, ?)`,
		ev.Timestamp, ev.Datetime, ev.Actuator, ev.Action, ev.TriggerValue)
	if err != nil {
		return 0, fmt.Errorf("insert control event: %w", err)
	}
	return res.LastInsertId()
}

// ControlEvents returns events with start <= timestamp <= end, newest first.
// limit <= 0 means no limit.
func (s *Store) ControlEvents(ctx context.Context, start, end int64, limit int) ([]models.ControlEvent, error) {
	query := `
		SELECT id, timestamp, datetime, actuator, action, trigger_value
		FROM control_events
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC`
	args := []interface{}{start, end}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query control events: %w", err)
	}
	defer rows.Close()

	var events []models.ControlEvent
	for rows.Next() {
		var ev models.ControlEvent
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Datetime, &ev.Actuator, &ev.Action, &ev.TriggerValue); err != nil {
			return nil, fmt.Errorf("scan control event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
