package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jereantequera/Autocann/internal/models"
)

func TestWeeklyReportTrends(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	grow := seedGrow(t, store, models.StageLateVeg)

	now := time.Unix(1700000000, 0).UTC()
	e.now = func() time.Time { return now }
	end := now.Unix()

	// previous week: cooler, score 0 (all out of range)
	appendRow(t, store, grow.ID, end-10*24*3600, models.StageLateVeg, 20, 50, 1.6)
	appendRow(t, store, grow.ID, end-9*24*3600, models.StageLateVeg, 20, 50, 1.6)

	// current week: warmer, score 100
	appendRow(t, store, grow.ID, end-3*24*3600, models.StageLateVeg, 24, 60, 1.0)
	appendRow(t, store, grow.ID, end-2*24*3600, models.StageLateVeg, 24, 60, 1.0)

	report, err := e.WeeklyReportFor(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, "score run", report.GrowName)
	assert.Equal(t, models.StageLateVeg, report.Stage)
	assert.Equal(t, int64(2), report.Summary.SampleCount)

	require.NotNil(t, report.Trends.Temperature)
	assert.Equal(t, 4.0, *report.Trends.Temperature)
	require.NotNil(t, report.Trends.Humidity)
	assert.Equal(t, 10.0, *report.Trends.Humidity)
	require.NotNil(t, report.Trends.VPDScore)
	assert.Equal(t, 100.0, *report.Trends.VPDScore)

	require.NotNil(t, report.VPDScore.Overall)
	assert.Equal(t, 100.0, *report.VPDScore.Overall)
	require.Len(t, report.VPDScore.Daily, 7)
}

func TestWeeklyReportTrendsNilWithoutPreviousWeek(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	grow := seedGrow(t, store, models.StageLateVeg)

	now := time.Unix(1700000000, 0).UTC()
	e.now = func() time.Time { return now }

	appendRow(t, store, grow.ID, now.Unix()-3600, models.StageLateVeg, 24, 60, 1.0)

	report, err := e.WeeklyReportFor(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, report.Trends.Temperature)
	assert.Nil(t, report.Trends.VPDScore)
}

func TestHourlyDistributionBestWorst(t *testing.T) {
	loc := time.UTC
	day := time.Date(2023, 11, 14, 0, 0, 0, 0, loc)

	var rows []models.SensorRecord
	add := func(hour int, vpd float64) {
		r := row(day.Add(time.Duration(hour)*time.Hour).Unix(), 24, 55, vpd)
		r.Stage = models.StageLateVeg
		rows = append(rows, r)
	}

	// hour 3: 100% in range; hour 5: 100% too (tie, earliest wins);
	// hour 8: 0%
	add(3, 1.0)
	add(5, 1.1)
	add(8, 1.6)

	stats, insights := hourlyDistribution(rows, models.StageLateVeg, loc)
	require.Len(t, stats, 3)
	assert.Equal(t, 3, stats[0].Hour)
	assert.Equal(t, "03:00", stats[0].HourLabel)
	assert.Equal(t, 100.0, stats[0].VPDScore)

	require.NotNil(t, insights.BestHour)
	assert.Equal(t, 3, *insights.BestHour)
	require.NotNil(t, insights.WorstHour)
	assert.Equal(t, 8, *insights.WorstHour)
	require.NotNil(t, insights.WorstHourScore)
	assert.Equal(t, 0.0, *insights.WorstHourScore)
}

func TestWeeklyReportByExplicitGrow(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	first := seedGrow(t, store, models.StageLateVeg)
	seedGrow(t, store, models.StageFlowering) // becomes active

	now := time.Unix(1700000000, 0).UTC()
	e.now = func() time.Time { return now }
	appendRow(t, store, first.ID, now.Unix()-3600, models.StageLateVeg, 24, 60, 1.0)

	report, err := e.WeeklyReportFor(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageLateVeg, report.Stage)
	assert.Equal(t, int64(1), report.Summary.SampleCount)
}
