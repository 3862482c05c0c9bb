package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jereantequera/Autocann/internal/models"
)

// ErrNotFound is returned when no grow matches the given id.
var ErrNotFound = errors.New("grow not found")

// ErrNoActiveGrow is returned when no grow is currently active.
var ErrNoActiveGrow = errors.New("no active grow")

// CreateGrow inserts a new grow and makes it the single active one,
// deactivating any previously active grow in the same transaction.
func (s *Store) CreateGrow(ctx context.Context, name string, stage models.GrowthStage, notes string) (*models.Grow, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("create grow: unknown stage %q", stage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create grow: %w", err)
	}
	defer tx.Rollback()

	grow := &models.Grow{
		ID:        uuid.New().String(),
		Name:      name,
		Stage:     stage,
		StartDate: time.Now().Format("2006-01-02"),
		IsActive:  true,
		Notes:     notes,
	}

	if _, err := tx.ExecContext(ctx, `UPDATE grows SET is_active = 0 WHERE is_active = 1`); err != nil {
		return nil, fmt.Errorf("deactivate previous grow: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO grows (id, name, stage, start_date, end_date, is_active, notes)
		VALUES (?, ?, ?, ?, NULL, 1, ?)`,
		grow.ID, grow.Name, grow.Stage, grow.StartDate, grow.Notes); err != nil {
		return nil, fmt.Errorf("insert grow: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create grow: %w", err)
	}
	return grow, nil
}

// ActiveGrow returns the currently active grow.
func (s *Store) ActiveGrow(ctx context.Context) (*models.Grow, error) {
	grow, err := s.scanGrow(s.db.QueryRowContext(ctx, `
		SELECT id, name, stage, start_date, end_date, is_active, notes
		FROM grows WHERE is_active = 1 LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveGrow
	}
	return grow, err
}

// GetGrow returns one grow by id.
func (s *Store) GetGrow(ctx context.Context, id string) (*models.Grow, error) {
	grow, err := s.scanGrow(s.db.QueryRowContext(ctx, `
		SELECT id, name, stage, start_date, end_date, is_active, notes
		FROM grows WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return grow, err
}

// ListGrows returns every grow with its sample coverage, newest start first.
func (s *Store) ListGrows(ctx context.Context) ([]models.GrowStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.stage, g.start_date, g.end_date, g.is_active, g.notes,
			COUNT(sd.id), MIN(sd.timestamp), MAX(sd.timestamp)
		FROM grows g
		LEFT JOIN sensor_data sd ON sd.grow_id = g.id
		GROUP BY g.id
		ORDER BY g.start_date DESC, g.id`)
	if err != nil {
		return nil, fmt.Errorf("list grows: %w", err)
	}
	defer rows.Close()

	var result []models.GrowStats
	for rows.Next() {
		var gs models.GrowStats
		var stage string
		var active int
		if err := rows.Scan(&gs.ID, &gs.Name, &stage, &gs.StartDate, &gs.EndDate, &active, &gs.Notes,
			&gs.SampleCount, &gs.FirstSample, &gs.LastSample); err != nil {
			return nil, fmt.Errorf("scan grow: %w", err)
		}
		gs.Stage = models.GrowthStage(stage)
		gs.IsActive = active == 1
		result = append(result, gs)
	}
	return result, rows.Err()
}

// UpdateGrowStage moves a grow to a new stage.
func (s *Store) UpdateGrowStage(ctx context.Context, id string, stage models.GrowthStage) error {
	if !stage.Valid() {
		return fmt.Errorf("update grow: unknown stage %q", stage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE grows SET stage = ? WHERE id = ?`, stage, id)
	if err != nil {
		return fmt.Errorf("update grow stage: %w", err)
	}
	return requireRow(res)
}

// ActivateGrow makes the given grow the single active one.
func (s *Store) ActivateGrow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("activate grow: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE grows SET is_active = 0 WHERE is_active = 1`); err != nil {
		return fmt.Errorf("deactivate previous grow: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE grows SET is_active = 1, end_date = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("activate grow: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// EndGrow deactivates a grow and stamps its end date.
func (s *Store) EndGrow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE grows SET is_active = 0, end_date = ? WHERE id = ?`,
		time.Now().Format("2006-01-02"), id)
	if err != nil {
		return fmt.Errorf("end grow: %w", err)
	}
	return requireRow(res)
}

func (s *Store) scanGrow(row *sql.Row) (*models.Grow, error) {
	var g models.Grow
	var stage string
	var active int
	if err := row.Scan(&g.ID, &g.Name, &stage, &g.StartDate, &g.EndDate, &active, &g.Notes); err != nil {
		return nil, err
	}
	g.Stage = models.GrowthStage(stage)
	g.IsActive = active == 1
	return &g, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
