package analytics

import (
	"context"
	"time"

	"github.com/jereantequera/Autocann/internal/models"
	"github.com/jereantequera/Autocann/internal/repository"
	"github.com/jereantequera/Autocann/internal/stage"
)

// HourlyStat is the average environment and compliance for one hour-of-day
// across the report window.
type HourlyStat struct {
	Hour        int      `json:"hour"`
	HourLabel   string   `json:"hour_label"`
	AvgTemp     *float64 `json:"avg_temp"`
	AvgHumidity *float64 `json:"avg_humidity"`
	AvgVPD      *float64 `json:"avg_vpd"`
	VPDScore    float64  `json:"vpd_score"`
	Samples     int      `json:"samples"`
}

// ReportPeriod is the date span a report covers.
type ReportPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Trends holds week-over-week deltas; nil when either week lacks data.
type Trends struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	VPDScore    *float64 `json:"vpd_score"`
}

// Insights names the best and worst performing hours of the week.
type Insights struct {
	BestHour       *int     `json:"best_hour"`
	WorstHour      *int     `json:"worst_hour"`
	BestHourScore  *float64 `json:"best_hour_score"`
	WorstHourScore *float64 `json:"worst_hour_score"`
}

// ScoreSection is the compliance part of the weekly report.
type ScoreSection struct {
	Overall *float64          `json:"overall"`
	Daily   []DailyScore      `json:"daily"`
	Range   stage.TargetRange `json:"range"`
}

// WeeklyReport compares the trailing 7 days against the preceding 7.
type WeeklyReport struct {
	GrowName           string                   `json:"grow_name"`
	Stage              models.GrowthStage       `json:"stage"`
	ReportPeriod       ReportPeriod             `json:"report_period"`
	Summary            repository.PeriodSummary `json:"summary"`
	VPDScore           ScoreSection             `json:"vpd_score"`
	Trends             Trends                   `json:"trends"`
	Insights           Insights                 `json:"insights"`
	HourlyDistribution []HourlyStat             `json:"hourly_distribution"`
}

// WeeklyReportFor builds the report for the given grow (empty id = active
// grow): trailing-week summary, compliance score, trend deltas against the
// preceding week and the hourly distribution with best/worst hours (ties
// break toward the earliest hour).
func (e *Engine) WeeklyReportFor(ctx context.Context, growID string) (*WeeklyReport, error) {
	grow, err := e.resolveGrow(ctx, growID)
	if err != nil {
		return nil, err
	}

	now := e.now().In(e.loc)
	end := now.Unix()
	start := end - 7*24*3600
	prevStart := start - 7*24*3600

	summary, err := e.store.Summarize(ctx, start, end, grow.ID)
	if err != nil {
		return nil, err
	}
	prevSummary, err := e.store.Summarize(ctx, prevStart, start, grow.ID)
	if err != nil {
		return nil, err
	}

	score, err := e.scoreWindow(ctx, grow, end, 7)
	if err != nil {
		return nil, err
	}
	prevScore, err := e.scoreWindow(ctx, grow, start, 7)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.QueryRange(ctx, start, end, grow.ID, 0)
	if err != nil {
		return nil, err
	}
	hourly, insights := hourlyDistribution(rows, grow.Stage, e.loc)

	report := &WeeklyReport{
		GrowName: grow.Name,
		Stage:    grow.Stage,
		ReportPeriod: ReportPeriod{
			Start: time.Unix(start, 0).In(e.loc).Format("2006-01-02"),
			End:   now.Format("2006-01-02"),
		},
		Summary: summary,
		VPDScore: ScoreSection{
			Overall: score.OverallScore,
			Daily:   score.DailyScores,
			Range:   score.Range,
		},
		Trends:             trends(summary, prevSummary, score, prevScore),
		Insights:           insights,
		HourlyDistribution: hourly,
	}
	return report, nil
}

func trends(cur, prev repository.PeriodSummary, curScore, prevScore *ScoreReport) Trends {
	var t Trends
	if cur.Temperature.Avg != nil && prev.Temperature.Avg != nil {
		d := round1(*cur.Temperature.Avg - *prev.Temperature.Avg)
		t.Temperature = &d
	}
	if cur.Humidity.Avg != nil && prev.Humidity.Avg != nil {
		d := round1(*cur.Humidity.Avg - *prev.Humidity.Avg)
		t.Humidity = &d
	}
	if curScore.OverallScore != nil && prevScore.OverallScore != nil {
		d := round1(*curScore.OverallScore - *prevScore.OverallScore)
		t.VPDScore = &d
	}
	return t
}

func hourlyDistribution(rows []models.SensorRecord, fallback models.GrowthStage, loc *time.Location) ([]HourlyStat, Insights) {
	type bucket struct {
		tempSum, humSum, vpdSum float64
		inRange, total          int
	}
	var buckets [24]bucket

	for i := range rows {
		row := &rows[i]
		hour := time.Unix(row.Timestamp, 0).In(loc).Hour()
		b := &buckets[hour]
		b.tempSum += row.Temperature
		b.humSum += row.Humidity
		b.vpdSum += row.VPD
		b.total++
		if rowInRange(row, fallback) {
			b.inRange++
		}
	}

	var stats []HourlyStat
	var insights Insights
	bestScore, worstScore := -1.0, 101.0

	for hour := 0; hour < 24; hour++ {
		b := buckets[hour]
		if b.total == 0 {
			continue
		}
		n := float64(b.total)
		avgTemp := round1(b.tempSum / n)
		avgHum := round1(b.humSum / n)
		avgVPD := round2(b.vpdSum / n)
		score := round1(float64(b.inRange) / n * 100)

		stats = append(stats, HourlyStat{
			Hour:        hour,
			HourLabel:   time.Date(0, 1, 1, hour, 0, 0, 0, time.UTC).Format("15:04"),
			AvgTemp:     &avgTemp,
			AvgHumidity: &avgHum,
			AvgVPD:      &avgVPD,
			VPDScore:    score,
			Samples:     b.total,
		})

		h := hour
		if score > bestScore {
			bestScore = score
			s := score
			insights.BestHour = &h
			insights.BestHourScore = &s
		}
		if score < worstScore {
			worstScore = score
			s := score
			insights.WorstHour = &h
			insights.WorstHourScore = &s
		}
	}
	return stats, insights
}
