package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jereantequera/Autocann/internal/models"
	"github.com/jereantequera/Autocann/internal/repository"
	"github.com/jereantequera/Autocann/internal/stage"
)

// ErrNoGrow means neither an explicit grow id nor an active grow was
// available to score against.
var ErrNoGrow = errors.New("no grow to score")

// DailyScore is the compliance score of one trailing 24h slice.
type DailyScore struct {
	Date           string   `json:"date"`
	DayName        string   `json:"day_name"`
	Score          *float64 `json:"score"`
	SamplesTotal   int      `json:"samples_total"`
	SamplesInRange int      `json:"samples_in_range"`
}

// ScoreReport is the VPD compliance score over a trailing window.
type ScoreReport struct {
	OverallScore   *float64          `json:"overall_score"`
	SamplesTotal   int               `json:"samples_total"`
	SamplesInRange int               `json:"samples_in_range"`
	Range          stage.TargetRange `json:"vpd_range"`
	Stage          models.GrowthStage `json:"stage"`
	Days           int               `json:"days"`
	DailyScores    []DailyScore      `json:"daily_scores"`
}

// VPDScore computes the fraction of samples whose metric fell inside the
// target range, overall and per trailing day (oldest first). Each row is
// scored against the stage recorded with it, so samples captured in an
// earlier stage keep their historical range; rows without a stage fall back
// to the grow's current one. Dry-stage rows are scored on humidity.
func (e *Engine) VPDScore(ctx context.Context, days int, growID string) (*ScoreReport, error) {
	grow, err := e.resolveGrow(ctx, growID)
	if err != nil {
		return nil, err
	}
	return e.scoreWindow(ctx, grow, e.now().In(e.loc).Unix(), days)
}

// scoreWindow scores the days trailing end; the weekly report reuses it with
// a shifted end to score the true previous week.
func (e *Engine) scoreWindow(ctx context.Context, grow *models.Grow, end int64, days int) (*ScoreReport, error) {
	effectiveRange, err := stage.Range(grow.Stage)
	if err != nil {
		return nil, err
	}

	start := end - int64(days)*24*3600

	rows, err := e.store.QueryRange(ctx, start, end, grow.ID, 0)
	if err != nil {
		return nil, err
	}

	report := &ScoreReport{
		Range: effectiveRange,
		Stage: grow.Stage,
		Days:  days,
	}

	daily := make([]DailyScore, days)
	for offset := 0; offset < days; offset++ {
		dayStart := end - int64(offset+1)*24*3600
		day := time.Unix(dayStart, 0).In(e.loc)
		// slot days oldest-first
		daily[days-1-offset] = DailyScore{
			Date:    day.Format("2006-01-02"),
			DayName: day.Weekday().String(),
		}
	}

	for i := range rows {
		row := &rows[i]
		inRange := rowInRange(row, grow.Stage)

		report.SamplesTotal++
		if inRange {
			report.SamplesInRange++
		}

		offset := (end - 1 - row.Timestamp) / (24 * 3600)
		if offset < 0 || offset >= int64(days) {
			continue
		}
		slot := &daily[days-1-int(offset)]
		slot.SamplesTotal++
		if inRange {
			slot.SamplesInRange++
		}
	}

	report.OverallScore = scoreOf(report.SamplesInRange, report.SamplesTotal)
	for i := range daily {
		daily[i].Score = scoreOf(daily[i].SamplesInRange, daily[i].SamplesTotal)
	}
	report.DailyScores = daily
	return report, nil
}

// rowInRange scores one sample against the range of the stage it was
// recorded under, falling back to the grow's current stage.
func rowInRange(row *models.SensorRecord, fallback models.GrowthStage) bool {
	s := row.Stage
	if !s.Valid() {
		s = fallback
	}
	r, err := stage.Range(s)
	if err != nil {
		return false
	}
	metric := row.VPD
	if r.Metric == stage.MetricHumidity {
		metric = row.Humidity
	}
	return r.Contains(metric)
}

func scoreOf(inRange, total int) *float64 {
	if total == 0 {
		return nil
	}
	score := round1(float64(inRange) / float64(total) * 100)
	return &score
}

func (e *Engine) resolveGrow(ctx context.Context, growID string) (*models.Grow, error) {
	if growID != "" {
		grow, err := e.store.GetGrow(ctx, growID)
		if err != nil {
			return nil, fmt.Errorf("resolve grow %s: %w", growID, err)
		}
		return grow, nil
	}
	grow, err := e.store.ActiveGrow(ctx)
	if errors.Is(err, repository.ErrNoActiveGrow) {
		return nil, ErrNoGrow
	}
	return grow, err
}
