package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jereantequera/Autocann/internal/models"
)

const (
	maxGapSeconds    = 900 // 15 min, three missed 5-min samples
	spikeWindow      = 600 // adjacent rows compared only within 10 min
	tempSpikeCelsius = 10.0
	humiditySpikePct = 30.0
	stuckRunLength   = 6
	stuckSpanSeconds = 1800
	minTempCelsius   = -10.0
	maxTempCelsius   = 60.0
)

// AnomalyReport is the full result of one detection run.
type AnomalyReport struct {
	Status        string           `json:"status"` // ok | warning | critical
	Anomalies     []models.Anomaly `json:"anomalies"`
	Warnings      []models.Anomaly `json:"warnings"`
	CheckedPeriod CheckedPeriod    `json:"checked_period"`
}

// CheckedPeriod describes the window a detection run covered.
type CheckedPeriod struct {
	Hours          int    `json:"hours"`
	SamplesChecked int    `json:"samples_checked"`
	Start          string `json:"start"`
	End            string `json:"end"`
}

// DetectAnomalies evaluates every rule over the trailing window. Empty and
// single-row windows are reported, never a crash.
func (e *Engine) DetectAnomalies(ctx context.Context, hours int, growID string) (*AnomalyReport, error) {
	now := e.now().In(e.loc)
	end := now.Unix()
	start := end - int64(hours)*3600

	rows, err := e.store.QueryRange(ctx, start, end, growID, 0)
	if err != nil {
		return nil, err
	}

	report := detect(rows, now, e.loc)
	report.CheckedPeriod = CheckedPeriod{
		Hours:          hours,
		SamplesChecked: len(rows),
		Start:          time.Unix(start, 0).In(e.loc).Format("2006-01-02 15:04:05"),
		End:            now.Format("2006-01-02 15:04:05"),
	}
	return report, nil
}

// detect is the pure rule evaluation over rows in ascending timestamp order.
func detect(rows []models.SensorRecord, now time.Time, loc *time.Location) *AnomalyReport {
	report := &AnomalyReport{
		Anomalies: []models.Anomaly{},
		Warnings:  []models.Anomaly{},
	}

	if len(rows) == 0 {
		report.Anomalies = append(report.Anomalies, models.Anomaly{
			Type:      "no_data",
			Severity:  models.SeverityCritical,
			Message:   "no data in the checked window",
			Timestamp: now.Format("2006-01-02 15:04:05"),
		})
		report.Status = "critical"
		return report
	}

	checkGaps(report, rows, loc)
	checkStale(report, rows, now, loc)
	checkInvalidValues(report, rows)
	checkSpikes(report, rows)
	checkStuck(report, rows)

	switch {
	case len(report.Anomalies) > 0:
		report.Status = "critical"
	case len(report.Warnings) > 0:
		report.Status = "warning"
	default:
		report.Status = "ok"
	}
	return report
}

func checkGaps(report *AnomalyReport, rows []models.SensorRecord, loc *time.Location) {
	for i := 1; i < len(rows); i++ {
		gap := rows[i].Timestamp - rows[i-1].Timestamp
		if gap > maxGapSeconds {
			gapMinutes := gap / 60
			report.Warnings = append(report.Warnings, models.Anomaly{
				Type:       "data_gap",
				Severity:   models.SeverityWarning,
				Message:    fmt.Sprintf("no data for %d minutes", gapMinutes),
				Timestamp:  time.Unix(rows[i-1].Timestamp, 0).In(loc).Format("2006-01-02 15:04:05"),
				GapMinutes: &gapMinutes,
			})
		}
	}
}

func checkStale(report *AnomalyReport, rows []models.SensorRecord, now time.Time, loc *time.Location) {
	last := rows[len(rows)-1].Timestamp
	sinceLast := now.Unix() - last
	if sinceLast > maxGapSeconds {
		minutesAgo := sinceLast / 60
		report.Anomalies = append(report.Anomalies, models.Anomaly{
			Type:       "stale_data",
			Severity:   models.SeverityCritical,
			Message:    fmt.Sprintf("last sample %d minutes ago, sensor possibly disconnected", minutesAgo),
			Timestamp:  time.Unix(last, 0).In(loc).Format("2006-01-02 15:04:05"),
			MinutesAgo: &minutesAgo,
		})
	}
}

func checkInvalidValues(report *AnomalyReport, rows []models.SensorRecord) {
	for i := range rows {
		row := &rows[i]
		if row.Temperature < minTempCelsius || row.Temperature > maxTempCelsius {
			v := row.Temperature
			report.Anomalies = append(report.Anomalies, models.Anomaly{
				Type:      "invalid_temperature",
				Severity:  models.SeverityCritical,
				Message:   fmt.Sprintf("invalid temperature: %.1f°C", v),
				Timestamp: row.Datetime,
				Value:     &v,
			})
		}
		if row.Humidity < 0 || row.Humidity > 100 {
			v := row.Humidity
			report.Anomalies = append(report.Anomalies, models.Anomaly{
				Type:      "invalid_humidity",
				Severity:  models.SeverityCritical,
				Message:   fmt.Sprintf("invalid humidity: %.1f%%", v),
				Timestamp: row.Datetime,
				Value:     &v,
			})
		}
	}
}

func checkSpikes(report *AnomalyReport, rows []models.SensorRecord) {
	for i := 1; i < len(rows); i++ {
		prev, cur := &rows[i-1], &rows[i]
		diff := cur.Timestamp - prev.Timestamp
		if diff > spikeWindow {
			continue
		}

		if change := abs(cur.Temperature - prev.Temperature); change > tempSpikeCelsius {
			from, to := prev.Temperature, cur.Temperature
			report.Warnings = append(report.Warnings, models.Anomaly{
				Type:      "temperature_spike",
				Severity:  models.SeverityWarning,
				Message:   fmt.Sprintf("abrupt temperature change: %.1f°C in %d min", change, diff/60),
				Timestamp: cur.Datetime,
				Change:    &change,
				FromValue: &from,
				ToValue:   &to,
			})
		}
		if change := abs(cur.Humidity - prev.Humidity); change > humiditySpikePct {
			from, to := prev.Humidity, cur.Humidity
			report.Warnings = append(report.Warnings, models.Anomaly{
				Type:      "humidity_spike",
				Severity:  models.SeverityWarning,
				Message:   fmt.Sprintf("abrupt humidity change: %.1f%% in %d min", change, diff/60),
				Timestamp: cur.Datetime,
				Change:    &change,
				FromValue: &from,
				ToValue:   &to,
			})
		}
	}
}

func checkStuck(report *AnomalyReport, rows []models.SensorRecord) {
	if stuck := findStuckRun(rows, func(r *models.SensorRecord) float64 { return r.Temperature }); stuck != nil {
		v := *stuck
		report.Warnings = append(report.Warnings, models.Anomaly{
			Type:     "stuck_temperature",
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("temperature stuck at %.1f for over 30 min, possible sensor fault", v),
			Value:    &v,
		})
	}
	if stuck := findStuckRun(rows, func(r *models.SensorRecord) float64 { return r.Humidity }); stuck != nil {
		v := *stuck
		report.Warnings = append(report.Warnings, models.Anomaly{
			Type:     "stuck_humidity",
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("humidity stuck at %.1f for over 30 min, possible sensor fault", v),
			Value:    &v,
		})
	}
}

// findStuckRun returns the stuck value when at least stuckRunLength
// consecutive samples are identical and the run spans stuckSpanSeconds.
func findStuckRun(rows []models.SensorRecord, value func(*models.SensorRecord) float64) *float64 {
	if len(rows) < stuckRunLength {
		return nil
	}
	runStart := 0
	for i := 1; i <= len(rows); i++ {
		if i < len(rows) && value(&rows[i]) == value(&rows[runStart]) {
			continue
		}
		runLen := i - runStart
		if runLen >= stuckRunLength {
			span := rows[i-1].Timestamp - rows[runStart].Timestamp
			if span >= stuckSpanSeconds {
				v := value(&rows[runStart])
				return &v
			}
		}
		runStart = i
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
