package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jereantequera/Autocann/internal/models"
)

const sensorColumns = `id, COALESCE(grow_id, ''), timestamp, datetime, COALESCE(stage, ''),
	temperature, humidity, vpd, outside_temperature, outside_humidity,
	leaf_temperature, leaf_vpd, target_humidity`

// AppendSensorRecord writes one history row and returns its id. Rows are
// never updated afterwards, only pruned by retention.
func (s *Store) AppendSensorRecord(ctx context.Context, rec *models.SensorRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sensor_data (
			grow_id, timestamp, datetime, stage,
			temperature, humidity, vpd,
			outside_temperature, outside_humidity,
			leaf_temperature, leaf_vpd, target_humidity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(rec.GrowID), rec.Timestamp, rec.Datetime, nullString(string(rec.Stage)),
		rec.Temperature, rec.Humidity, rec.VPD,
		rec.OutsideTemperature, rec.OutsideHumidity,
		rec.LeafTemperature, rec.LeafVPD, rec.TargetHumidity,
	)
	if err != nil {
		return 0, fmt.Errorf("insert sensor record: %w", err)
	}
	return res.LastInsertId()
}

// QueryRange returns rows with start <= timestamp <= end in ascending
// timestamp order. growID filters when non-empty. When limit > 0 the most
// recent limit rows inside the range are returned (still ascending).
func (s *Store) QueryRange(ctx context.Context, start, end int64, growID string, limit int) ([]models.SensorRecord, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensor_data WHERE timestamp >= ? AND timestamp <= ?`
	args := []interface{}{start, end}
	if growID != "" {
		query += ` AND grow_id = ?`
		args = append(args, growID)
	}
	query += ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sensor range: %w", err)
	}
	defer rows.Close()

	records, err := scanSensorRecords(rows)
	if err != nil {
		return nil, err
	}
	reverse(records)
	return records, nil
}

// Latest returns the most recent n rows, newest first.
func (s *Store) Latest(ctx context.Context, n int) ([]models.SensorRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sensorColumns+` FROM sensor_data ORDER BY timestamp DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()
	return scanSensorRecords(rows)
}

// AggregateBucket is one time bucket of the windowed aggregation.
type AggregateBucket struct {
	BucketStart    int64   `json:"bucket_start"`
	AvgTemperature float64 `json:"avg_temperature"`
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	AvgHumidity    float64 `json:"avg_humidity"`
	MinHumidity    float64 `json:"min_humidity"`
	MaxHumidity    float64 `json:"max_humidity"`
	AvgVPD         float64 `json:"avg_vpd"`
	MinVPD         float64 `json:"min_vpd"`
	MaxVPD         float64 `json:"max_vpd"`
	SampleCount    int64   `json:"sample_count"`
}

// Aggregate buckets rows by bucketSeconds using integer-divided timestamps,
// so bucket starts are aligned to the epoch, not to the first row.
func (s *Store) Aggregate(ctx context.Context, start, end, bucketSeconds int64, growID string) ([]AggregateBucket, error) {
	if bucketSeconds <= 0 {
		return nil, fmt.Errorf("aggregate: bucket width must be positive, got %d", bucketSeconds)
	}

	query := `
		SELECT
			(timestamp / ?) * ? AS bucket_start,
			AVG(temperature), MIN(temperature), MAX(temperature),
			AVG(humidity), MIN(humidity), MAX(humidity),
			AVG(vpd), MIN(vpd), MAX(vpd),
			COUNT(*)
		FROM sensor_data
		WHERE timestamp >= ? AND timestamp <= ?`
	args := []interface{}{bucketSeconds, bucketSeconds, start, end}
	if growID != "" {
		query += ` AND grow_id = ?`
		args = append(args, growID)
	}
	query += ` GROUP BY bucket_start ORDER BY bucket_start ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate sensor data: %w", err)
	}
	defer rows.Close()

	var buckets []AggregateBucket
	for rows.Next() {
		var b AggregateBucket
		if err := rows.Scan(
			&b.BucketStart,
			&b.AvgTemperature, &b.MinTemperature, &b.MaxTemperature,
			&b.AvgHumidity, &b.MinHumidity, &b.MaxHumidity,
			&b.AvgVPD, &b.MinVPD, &b.MaxVPD,
			&b.SampleCount,
		); err != nil {
			return nil, fmt.Errorf("scan aggregate bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// MetricSummary is avg/min/max for one column; nil when the window is empty.
type MetricSummary struct {
	Avg *float64 `json:"avg"`
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// PeriodSummary holds summary statistics over a window.
type PeriodSummary struct {
	Temperature MetricSummary `json:"temperature"`
	Humidity    MetricSummary `json:"humidity"`
	VPD         MetricSummary `json:"vpd"`
	SampleCount int64         `json:"sample_count"`
}

// Summarize computes summary statistics over start <= timestamp <= end.
// growID filters when non-empty. An empty window returns a zero summary
// with nil metric values, not an error.
func (s *Store) Summarize(ctx context.Context, start, end int64, growID string) (PeriodSummary, error) {
	query := `
		SELECT
			AVG(temperature), MIN(temperature), MAX(temperature),
			AVG(humidity), MIN(humidity), MAX(humidity),
			AVG(vpd), MIN(vpd), MAX(vpd),
			COUNT(*)
		FROM sensor_data
		WHERE timestamp >= ? AND timestamp <= ?`
	args := []interface{}{start, end}
	if growID != "" {
		query += ` AND grow_id = ?`
		args = append(args, growID)
	}

	var sum PeriodSummary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&sum.Temperature.Avg, &sum.Temperature.Min, &sum.Temperature.Max,
		&sum.Humidity.Avg, &sum.Humidity.Min, &sum.Humidity.Max,
		&sum.VPD.Avg, &sum.VPD.Min, &sum.VPD.Max,
		&sum.SampleCount)
	if err != nil {
		return PeriodSummary{}, fmt.Errorf("summarize period: %w", err)
	}
	return sum, nil
}

func scanSensorRecords(rows *sql.Rows) ([]models.SensorRecord, error) {
	var records []models.SensorRecord
	for rows.Next() {
		var rec models.SensorRecord
		var stage string
		if err := rows.Scan(
			&rec.ID, &rec.GrowID, &rec.Timestamp, &rec.Datetime, &stage,
			&rec.Temperature, &rec.Humidity, &rec.VPD,
			&rec.OutsideTemperature, &rec.OutsideHumidity,
			&rec.LeafTemperature, &rec.LeafVPD, &rec.TargetHumidity,
		); err != nil {
			return nil, fmt.Errorf("scan sensor record: %w", err)
		}
		rec.Stage = models.GrowthStage(stage)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func reverse(records []models.SensorRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
