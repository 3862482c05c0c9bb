package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jereantequera/Autocann/internal/models"
	"github.com/jereantequera/Autocann/internal/repository"
	"github.com/jereantequera/Autocann/internal/stage"
)

func seedGrow(t *testing.T, store *repository.Store, s models.GrowthStage) *models.Grow {
	t.Helper()
	grow, err := store.CreateGrow(context.Background(), "score run", s, "")
	require.NoError(t, err)
	return grow
}

func appendRow(t *testing.T, store *repository.Store, growID string, ts int64, s models.GrowthStage, temp, hum, vpd float64) {
	t.Helper()
	rec := row(ts, temp, hum, vpd)
	rec.GrowID = growID
	rec.Stage = s
	_, err := store.AppendSensorRecord(context.Background(), &rec)
	require.NoError(t, err)
}

func TestVPDScoreSevenOfTen(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	grow := seedGrow(t, store, models.StageLateVeg) // VPD [0.8, 1.2]

	now := time.Unix(1700000000, 0).UTC()
	e.now = func() time.Time { return now }

	inRange := []float64{0.8, 0.9, 1.0, 1.05, 1.1, 1.15, 1.2}
	outOfRange := []float64{0.5, 1.4, 1.6}
	ts := now.Unix() - 3600
	for _, v := range append(inRange, outOfRange...) {
		appendRow(t, store, grow.ID, ts, models.StageLateVeg, 24, 55, v)
		ts += 60
	}

	report, err := e.VPDScore(ctx, 1, "")
	require.NoError(t, err)
	require.NotNil(t, report.OverallScore)
	assert.Equal(t, 70.0, *report.OverallScore)
	assert.Equal(t, 10, report.SamplesTotal)
	assert.Equal(t, 7, report.SamplesInRange)
	assert.Equal(t, models.StageLateVeg, report.Stage)
	assert.Equal(t, stage.TargetRange{Metric: stage.MetricVPD, Low: 0.8, High: 1.2}, report.Range)
}

func TestVPDScoreDailyBreakdown(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	grow := seedGrow(t, store, models.StageLateVeg)

	now := time.Unix(1700000000, 0).UTC()
	e.now = func() time.Time { return now }

	// yesterday slice: 1 of 2 in range; today slice: 2 of 2
	appendRow(t, store, grow.ID, now.Unix()-30*3600, models.StageLateVeg, 24, 55, 1.0)
	appendRow(t, store, grow.ID, now.Unix()-29*3600, models.StageLateVeg, 24, 55, 1.6)
	appendRow(t, store, grow.ID, now.Unix()-2*3600, models.StageLateVeg, 24, 55, 0.9)
	appendRow(t, store, grow.ID, now.Unix()-1*3600, models.StageLateVeg, 24, 55, 1.1)

	report, err := e.VPDScore(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, report.DailyScores, 2)

	// oldest first
	older, newer := report.DailyScores[0], report.DailyScores[1]
	assert.Equal(t, 2, older.SamplesTotal)
	require.NotNil(t, older.Score)
	assert.Equal(t, 50.0, *older.Score)
	assert.Equal(t, 2, newer.SamplesTotal)
	require.NotNil(t, newer.Score)
	assert.Equal(t, 100.0, *newer.Score)
}

func TestVPDScoreUsesStageRecordedWithRow(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	grow := seedGrow(t, store, models.StageFlowering) // current range [1.2, 1.5]

	now := time.Unix(1700000000, 0).UTC()
	e.now = func() time.Time { return now }

	// captured during late_veg: 1.0 was in range back then
	appendRow(t, store, grow.ID, now.Unix()-7200, models.StageLateVeg, 24, 55, 1.0)
	// captured after the flip to flowering: 1.0 is now out of range
	appendRow(t, store, grow.ID, now.Unix()-3600, models.StageFlowering, 24, 55, 1.0)

	report, err := e.VPDScore(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.SamplesTotal)
	assert.Equal(t, 1, report.SamplesInRange)
}

func TestVPDScoreDryStageUsesHumidity(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	grow := seedGrow(t, store, models.StageDry) // humidity [60, 65]

	now := time.Unix(1700000000, 0).UTC()
	e.now = func() time.Time { return now }

	appendRow(t, store, grow.ID, now.Unix()-3600, models.StageDry, 20, 62, 0.9)
	appendRow(t, store, grow.ID, now.Unix()-1800, models.StageDry, 20, 40, 0.9)

	report, err := e.VPDScore(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.SamplesInRange)
	assert.Equal(t, stage.MetricHumidity, report.Range.Metric)
}

func TestVPDScoreEmptyWindow(t *testing.T) {
	e, store := newTestEngine(t)
	seedGrow(t, store, models.StageLateVeg)

	report, err := e.VPDScore(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Nil(t, report.OverallScore)
	assert.Zero(t, report.SamplesTotal)
}

func TestVPDScoreNoGrow(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.VPDScore(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrNoGrow)
}
