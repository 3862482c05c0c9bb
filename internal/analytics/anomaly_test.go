package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jereantequera/Autocann/internal/models"
	"github.com/jereantequera/Autocann/internal/repository"
)

func newTestEngine(t *testing.T) (*Engine, *repository.Store) {
	t.Helper()
	store, err := repository.NewMemoryStore(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewEngine(store, zap.NewNop(), time.UTC), store
}

func row(ts int64, temp, hum, vpd float64) models.SensorRecord {
	return models.SensorRecord{
		Timestamp:   ts,
		Datetime:    time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05"),
		Stage:       models.StageFlowering,
		Temperature: temp,
		Humidity:    hum,
		VPD:         vpd,
	}
}

func anomalyTypes(list []models.Anomaly) []string {
	types := make([]string, 0, len(list))
	for _, a := range list {
		types = append(types, a.Type)
	}
	return types
}

func TestDetectEmptyWindow(t *testing.T) {
	report := detect(nil, time.Unix(1700000000, 0).UTC(), time.UTC)

	assert.Equal(t, "critical", report.Status)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, "no_data", report.Anomalies[0].Type)
	assert.Empty(t, report.Warnings)
}

func TestDetectHealthyWindow(t *testing.T) {
	base := int64(1700000000)
	rows := []models.SensorRecord{
		row(base, 24.0, 55, 1.2),
		row(base+300, 24.2, 56, 1.21),
		row(base+600, 24.4, 55, 1.23),
	}
	report := detect(rows, time.Unix(base+660, 0).UTC(), time.UTC)
	assert.Equal(t, "ok", report.Status)
	assert.Empty(t, report.Anomalies)
	assert.Empty(t, report.Warnings)
}

func TestDetectTemperatureSpikeOnly(t *testing.T) {
	base := int64(1700000000)
	rows := []models.SensorRecord{
		row(base, 22.0, 55, 1.2),
		row(base+300, 35.0, 55, 1.2),
	}
	report := detect(rows, time.Unix(base+360, 0).UTC(), time.UTC)

	assert.Equal(t, "warning", report.Status)
	assert.Empty(t, report.Anomalies)
	require.Len(t, report.Warnings, 1)

	spike := report.Warnings[0]
	assert.Equal(t, "temperature_spike", spike.Type)
	require.NotNil(t, spike.Change)
	assert.InDelta(t, 13.0, *spike.Change, 1e-9)
	require.NotNil(t, spike.FromValue)
	assert.Equal(t, 22.0, *spike.FromValue)
	require.NotNil(t, spike.ToValue)
	assert.Equal(t, 35.0, *spike.ToValue)
}

func TestDetectSpikeIgnoredAcrossLongInterval(t *testing.T) {
	base := int64(1700000000)
	rows := []models.SensorRecord{
		row(base, 22.0, 55, 1.2),
		row(base+700, 35.0, 55, 1.2), // 700s apart, outside the 10 min window
	}
	report := detect(rows, time.Unix(base+760, 0).UTC(), time.UTC)
	assert.NotContains(t, anomalyTypes(report.Warnings), "temperature_spike")
}

func TestDetectHumiditySpike(t *testing.T) {
	base := int64(1700000000)
	rows := []models.SensorRecord{
		row(base, 24.0, 30, 1.2),
		row(base+300, 24.0, 65, 1.2),
	}
	report := detect(rows, time.Unix(base+360, 0).UTC(), time.UTC)
	assert.Contains(t, anomalyTypes(report.Warnings), "humidity_spike")
}

func TestDetectDataGap(t *testing.T) {
	base := int64(1700000000)
	rows := []models.SensorRecord{
		row(base, 24.0, 55, 1.2),
		row(base+1200, 24.0, 55, 1.2), // 20 min gap
	}
	report := detect(rows, time.Unix(base+1260, 0).UTC(), time.UTC)

	require.Contains(t, anomalyTypes(report.Warnings), "data_gap")
	for _, w := range report.Warnings {
		if w.Type == "data_gap" {
			require.NotNil(t, w.GapMinutes)
			assert.Equal(t, int64(20), *w.GapMinutes)
		}
	}
}

func TestDetectStaleData(t *testing.T) {
	base := int64(1700000000)
	rows := []models.SensorRecord{row(base, 24.0, 55, 1.2)}

	report := detect(rows, time.Unix(base+1800, 0).UTC(), time.UTC)
	assert.Equal(t, "critical", report.Status)
	require.Contains(t, anomalyTypes(report.Anomalies), "stale_data")
	for _, a := range report.Anomalies {
		if a.Type == "stale_data" {
			require.NotNil(t, a.MinutesAgo)
			assert.Equal(t, int64(30), *a.MinutesAgo)
		}
	}
}

func TestDetectInvalidValues(t *testing.T) {
	base := int64(1700000000)
	rows := []models.SensorRecord{
		row(base, 75.0, 55, 1.2),
		row(base+300, 24.0, 120, 1.2),
	}
	report := detect(rows, time.Unix(base+360, 0).UTC(), time.UTC)

	assert.Equal(t, "critical", report.Status)
	types := anomalyTypes(report.Anomalies)
	assert.Contains(t, types, "invalid_temperature")
	assert.Contains(t, types, "invalid_humidity")
}

func TestDetectStuckValues(t *testing.T) {
	base := int64(1700000000)
	var rows []models.SensorRecord
	for i := 0; i < 7; i++ {
		rows = append(rows, row(base+int64(i)*300, 24.0, 55.0, 1.2))
	}
	// vary humidity so only temperature is stuck
	for i := range rows {
		rows[i].Humidity = 55.0 + float64(i)
	}

	report := detect(rows, time.Unix(base+2100, 0).UTC(), time.UTC)
	types := anomalyTypes(report.Warnings)
	assert.Contains(t, types, "stuck_temperature")
	assert.NotContains(t, types, "stuck_humidity")
}

func TestDetectStuckNeedsTimeSpan(t *testing.T) {
	base := int64(1700000000)
	var rows []models.SensorRecord
	// 6 identical values only 100s apart: run is long enough but spans
	// under 30 minutes
	for i := 0; i < 6; i++ {
		rows = append(rows, row(base+int64(i)*100, 24.0, 55.0+float64(i), 1.2))
	}
	report := detect(rows, time.Unix(base+600, 0).UTC(), time.UTC)
	assert.NotContains(t, anomalyTypes(report.Warnings), "stuck_temperature")
}

func TestDetectAnomaliesEndToEnd(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	now := time.Unix(1700000000, 0).UTC()
	e.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		rec := row(now.Unix()-int64(4-i)*300, 24.0+float64(i)*0.1, 55, 1.25)
		_, err := store.AppendSensorRecord(ctx, &rec)
		require.NoError(t, err)
	}

	report, err := e.DetectAnomalies(ctx, 24, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, 4, report.CheckedPeriod.SamplesChecked)
	assert.Equal(t, 24, report.CheckedPeriod.Hours)
}
