package httpapi

import (
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExportHistory streams the selected history window as an xlsx workbook.
// Accepts the same period/start/end/grow_id parameters as SensorHistory;
// without a window the trailing 24h are exported.
func (s *Server) ExportHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := q.Get("period")
	if period == "" && q.Get("start") == "" && q.Get("end") == "" {
		period = "24h"
	}
	start, end, ok, errMsg := s.resolveWindow(period, q.Get("start"), q.Get("end"))
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "a period or start/end window is required")
		return
	}

	rows, err := s.store.QueryRange(r.Context(), start, end, q.Get("grow_id"), 0)
	if err != nil {
		s.fail(w, "query history for export", err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "SensorData"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Timestamp", "Datetime", "Stage",
		"Temperature (°C)", "Humidity (%)", "VPD (kPa)",
		"Outside Temp (°C)", "Outside Humidity (%)",
		"Leaf Temp (°C)", "Leaf VPD (kPa)", "Target Humidity (%)",
	}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for i, rec := range rows {
		rowNum := i + 2
		values := []any{
			rec.Timestamp, rec.Datetime, string(rec.Stage),
			rec.Temperature, rec.Humidity, rec.VPD,
			rec.OutsideTemperature, rec.OutsideHumidity,
			derefOrEmpty(rec.LeafTemperature),
			derefOrEmpty(rec.LeafVPD),
			derefOrEmpty(rec.TargetHumidity),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("sensor_history_%d_%d.xlsx", start, end)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		s.logger.Error("failed to stream export", zap.Error(err))
	}
}

func derefOrEmpty(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
