package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router wraps the standard library ServeMux (no third-party routing
// dependency needed for this surface).
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// Register wires every API route onto the router.
func (r *Router) Register(s *Server) {
	r.Handle("/api/current-data", methodOnly(http.MethodGet, s.CurrentData))
	r.Handle("/api/historical-data", methodOnly(http.MethodGet, s.HistoricalData))
	r.Handle("/api/sensor-status", methodOnly(http.MethodGet, s.SensorStatus))
	r.Handle("/api/output-status", methodOnly(http.MethodGet, s.OutputStatus))
	r.Handle("/api/sensor-history", methodOnly(http.MethodGet, s.SensorHistory))
	r.Handle("/api/sensor-history/export", methodOnly(http.MethodGet, s.ExportHistory))
	r.Handle("/api/database-stats", methodOnly(http.MethodGet, s.DatabaseStats))
	r.Handle("/api/period-summary", methodOnly(http.MethodGet, s.PeriodSummary))
	r.Handle("/api/vpd-score", methodOnly(http.MethodGet, s.VPDScore))
	r.Handle("/api/weekly-report", methodOnly(http.MethodGet, s.WeeklyReport))
	r.Handle("/api/anomalies", methodOnly(http.MethodGet, s.Anomalies))

	r.Handle("/api/sensor/indoor", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			s.ReceiveIndoorSample(w, req)
		case http.MethodGet:
			s.IndoorSample(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/api/grows", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			s.ListGrows(w, req)
		case http.MethodPost:
			s.CreateGrow(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle("/api/grows/active", methodOnly(http.MethodGet, s.ActiveGrow))

	// /api/grows/{id}/activate | /api/grows/{id}/end | /api/grows/{id}/stage
	r.Handle("/api/grows/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/api/grows/")
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		if len(parts) != 2 || parts[0] == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		id, action := parts[0], parts[1]
		switch {
		case action == "activate" && req.Method == http.MethodPost:
			s.ActivateGrow(w, req, id)
		case action == "end" && req.Method == http.MethodPost:
			s.EndGrow(w, req, id)
		case action == "stage" && req.Method == http.MethodPut:
			s.UpdateGrowStage(w, req, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}
