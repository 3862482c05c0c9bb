// Package httpapi exposes the engine's read-only contracts plus grow
// management and the indoor-sensor ingest endpoint.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jereantequera/Autocann/internal/analytics"
	"github.com/jereantequera/Autocann/internal/cache"
	"github.com/jereantequera/Autocann/internal/models"
	"github.com/jereantequera/Autocann/internal/repository"
	"github.com/jereantequera/Autocann/internal/vpd"
)

// periodSeconds maps history period tokens to their span.
var periodSeconds = map[string]int64{
	"1h":  3600,
	"6h":  6 * 3600,
	"12h": 12 * 3600,
	"24h": 24 * 3600,
	"7d":  7 * 24 * 3600,
	"30d": 30 * 24 * 3600,
	"90d": 90 * 24 * 3600,
}

// Server holds the handler dependencies. All handlers are read-only against
// the control loop except grow management and the ingest endpoint.
type Server struct {
	store  *repository.Store
	cache  *cache.Cache
	engine *analytics.Engine
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

func NewServer(store *repository.Store, c *cache.Cache, engine *analytics.Engine, logger *zap.Logger, loc *time.Location) *Server {
	return &Server{
		store:  store,
		cache:  c,
		engine: engine,
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

// CurrentData returns the latest snapshot plus actuator states.
func (s *Server) CurrentData(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cache.Snapshot(r.Context())
	if errors.Is(err, cache.ErrMiss) {
		writeError(w, http.StatusNotFound, "no sensor data available yet")
		return
	}
	if err != nil {
		s.fail(w, "read snapshot", err)
		return
	}
	outputs, err := s.cache.ActuatorStates(r.Context())
	if err != nil {
		s.fail(w, "read actuator states", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*models.Snapshot
		Outputs models.ActuatorState `json:"outputs"`
	}{snap, outputs})
}

// HistoricalData serves a materialized rolling window from the cache.
func (s *Server) HistoricalData(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "6h"
	}
	points, err := s.cache.History(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period": period,
		"data":   points,
		"count":  len(points),
	})
}

func (s *Server) SensorStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.cache.SensorStatus(r.Context())
	if errors.Is(err, cache.ErrMiss) {
		writeError(w, http.StatusNotFound, "no sensor status available yet")
		return
	}
	if err != nil {
		s.fail(w, "read sensor status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) OutputStatus(w http.ResponseWriter, r *http.Request) {
	outputs, err := s.cache.ActuatorStates(r.Context())
	if err != nil {
		s.fail(w, "read actuator states", err)
		return
	}
	writeJSON(w, http.StatusOK, outputs)
}

// SensorHistory queries the durable history: a period token or explicit
// start/end epoch seconds, optional aggregation bucket width and row limit.
func (s *Server) SensorHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, ok, errMsg := s.resolveWindow(q.Get("period"), q.Get("start"), q.Get("end"))
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	growID := q.Get("grow_id")
	limit := parseInt(q.Get("limit"), 0)

	if !ok {
		if limit <= 0 {
			limit = 100
		}
		rows, err := s.store.Latest(r.Context(), limit)
		if err != nil {
			s.fail(w, "query latest", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":       rows,
			"count":      len(rows),
			"aggregated": false,
		})
		return
	}

	if bucket := parseInt(q.Get("aggregate"), 0); bucket > 0 {
		buckets, err := s.store.Aggregate(r.Context(), start, end, int64(bucket), growID)
		if err != nil {
			s.fail(w, "aggregate history", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":             buckets,
			"count":            len(buckets),
			"start":            start,
			"end":              end,
			"aggregated":       true,
			"interval_seconds": bucket,
		})
		return
	}

	rows, err := s.store.QueryRange(r.Context(), start, end, growID, limit)
	if err != nil {
		s.fail(w, "query history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"count":      len(rows),
		"start":      start,
		"end":        end,
		"aggregated": false,
	})
}

func (s *Server) DatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.fail(w, "database stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) PeriodSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, okStart := parseInt64(q.Get("start"))
	end, okEnd := parseInt64(q.Get("end"))
	if !okStart || !okEnd {
		writeError(w, http.StatusBadRequest, "start and end epoch seconds are required")
		return
	}
	summary, err := s.store.Summarize(r.Context(), start, end, q.Get("grow_id"))
	if err != nil {
		s.fail(w, "summarize period", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) VPDScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseInt(q.Get("days"), 1)
	if days < 1 {
		writeError(w, http.StatusBadRequest, "days must be at least 1")
		return
	}
	report, err := s.engine.VPDScore(r.Context(), days, q.Get("grow_id"))
	if err != nil {
		s.analyticsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.WeeklyReportFor(r.Context(), r.URL.Query().Get("grow_id"))
	if err != nil {
		s.analyticsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) Anomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hours := parseInt(q.Get("hours"), 24)
	if hours < 1 {
		writeError(w, http.StatusBadRequest, "hours must be at least 1")
		return
	}
	report, err := s.engine.DetectAnomalies(r.Context(), hours, q.Get("grow_id"))
	if err != nil {
		s.fail(w, "detect anomalies", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ReceiveIndoorSample ingests a sample pushed by the ESP32 node: validate,
// compute VPD, cache for the next control cycle.
func (s *Server) ReceiveIndoorSample(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Temperature *float64 `json:"temperature"`
		Humidity    *float64 `json:"humidity"`
	}
	if err := readBodyJSON(r, 1<<16, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Temperature == nil {
		writeError(w, http.StatusBadRequest, "missing 'temperature' field")
		return
	}
	if body.Humidity == nil {
		writeError(w, http.StatusBadRequest, "missing 'humidity' field")
		return
	}

	vpdVal, err := vpd.Calculate(*body.Temperature, *body.Humidity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := s.now().In(s.loc)
	sample := &models.RemoteSample{
		Temperature: *body.Temperature,
		Humidity:    *body.Humidity,
		VPD:         vpdVal,
		Timestamp:   now.Unix(),
		Datetime:    now.Format("2006-01-02 15:04:05"),
		Source:      "esp32",
	}
	if err := s.cache.StoreRemoteSample(r.Context(), sample); err != nil {
		s.fail(w, "store remote sample", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": sample})
}

// IndoorSample returns the last pushed sample with its age.
func (s *Server) IndoorSample(w http.ResponseWriter, r *http.Request) {
	sample, err := s.cache.RemoteSample(r.Context())
	if errors.Is(err, cache.ErrMiss) {
		writeError(w, http.StatusNotFound, "no indoor sensor data available")
		return
	}
	if err != nil {
		s.fail(w, "read remote sample", err)
		return
	}
	age := s.now().Unix() - sample.Timestamp
	writeJSON(w, http.StatusOK, struct {
		*models.RemoteSample
		AgeSeconds int64 `json:"age_seconds"`
		IsStale    bool  `json:"is_stale"`
	}{sample, age, age > 300})
}

func (s *Server) ListGrows(w http.ResponseWriter, r *http.Request) {
	grows, err := s.store.ListGrows(r.Context())
	if err != nil {
		s.fail(w, "list grows", err)
		return
	}
	if grows == nil {
		grows = []models.GrowStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"grows": grows, "count": len(grows)})
}

func (s *Server) CreateGrow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string             `json:"name"`
		Stage models.GrowthStage `json:"stage"`
		Notes string             `json:"notes"`
	}
	if err := readBodyJSON(r, 1<<16, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "missing 'name' field")
		return
	}
	if !body.Stage.Valid() {
		writeError(w, http.StatusBadRequest, "invalid stage")
		return
	}

	grow, err := s.store.CreateGrow(r.Context(), body.Name, body.Stage, body.Notes)
	if err != nil {
		s.fail(w, "create grow", err)
		return
	}
	writeJSON(w, http.StatusCreated, grow)
}

func (s *Server) ActiveGrow(w http.ResponseWriter, r *http.Request) {
	grow, err := s.store.ActiveGrow(r.Context())
	if errors.Is(err, repository.ErrNoActiveGrow) {
		writeError(w, http.StatusNotFound, "no active grow")
		return
	}
	if err != nil {
		s.fail(w, "get active grow", err)
		return
	}
	writeJSON(w, http.StatusOK, grow)
}

func (s *Server) ActivateGrow(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.store.ActivateGrow(r.Context(), id); err != nil {
		s.growError(w, "activate grow", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "activated", "id": id})
}

func (s *Server) EndGrow(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.store.EndGrow(r.Context(), id); err != nil {
		s.growError(w, "end grow", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended", "id": id})
}

func (s *Server) UpdateGrowStage(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Stage models.GrowthStage `json:"stage"`
	}
	if err := readBodyJSON(r, 1<<16, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !body.Stage.Valid() {
		writeError(w, http.StatusBadRequest, "invalid stage")
		return
	}
	if err := s.store.UpdateGrowStage(r.Context(), id, body.Stage); err != nil {
		s.growError(w, "update grow stage", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "id": id, "stage": string(body.Stage)})
}

// resolveWindow turns a period token or explicit start/end into a window.
// ok=false means no window was requested at all.
func (s *Server) resolveWindow(period, startStr, endStr string) (start, end int64, ok bool, errMsg string) {
	if period != "" {
		span, valid := periodSeconds[period]
		if !valid {
			return 0, 0, false, "invalid period, use one of: 1h, 6h, 12h, 24h, 7d, 30d, 90d"
		}
		end = s.now().In(s.loc).Unix()
		return end - span, end, true, ""
	}

	start, okStart := parseInt64(startStr)
	end, okEnd := parseInt64(endStr)
	if !okStart && !okEnd {
		return 0, 0, false, ""
	}
	if !okStart || !okEnd {
		return 0, 0, false, "both start and end are required"
	}
	return start, end, true, ""
}

// growError maps the missing-grow case to 404; anything else is internal.
func (s *Server) growError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "grow not found")
		return
	}
	s.fail(w, op, err)
}

func (s *Server) analyticsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analytics.ErrNoGrow):
		writeError(w, http.StatusNotFound, "no active grow")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "grow not found")
	default:
		s.fail(w, "analytics query", err)
	}
}

// fail logs the internal error and returns a generic message, never the raw
// fault.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.logger.Error("api request failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
