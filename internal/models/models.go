package models

import "time"

// GrowthStage is the cultivation phase of the active grow. The stage decides
// which environmental band the controller keeps the chamber inside.
type GrowthStage string

const (
	StageEarlyVeg  GrowthStage = "early_veg"
	StageLateVeg   GrowthStage = "late_veg"
	StageFlowering GrowthStage = "flowering"
	StageDry       GrowthStage = "dry"
)

// Stages lists every defined stage, in lifecycle order.
var Stages = []GrowthStage{StageEarlyVeg, StageLateVeg, StageFlowering, StageDry}

// Valid reports whether s is one of the defined stages.
func (s GrowthStage) Valid() bool {
	switch s {
	case StageEarlyVeg, StageLateVeg, StageFlowering, StageDry:
		return true
	}
	return false
}

// Reading is one immutable capture of both chamber sensors.
// LeafTemperature defaults to inside temperature minus a fixed offset when
// no dedicated leaf probe exists.
type Reading struct {
	Timestamp          time.Time `json:"-"`
	Temperature        float64   `json:"temperature"`
	Humidity           float64   `json:"humidity"`
	OutsideTemperature float64   `json:"outside_temperature"`
	OutsideHumidity    float64   `json:"outside_humidity"`
	LeafTemperature    float64   `json:"leaf_temperature"`
}

// DerivedMetrics are computed deterministically from a Reading and are only
// ever stored joined to the Reading that produced them.
type DerivedMetrics struct {
	VPD     float64 `json:"vpd"`
	LeafVPD float64 `json:"leaf_vpd"`
}

// SensorRecord is one durable history row: Reading + DerivedMetrics + the
// stage and humidity target effective at write time. Append-only.
type SensorRecord struct {
	ID                 int64       `json:"id"`
	GrowID             string      `json:"grow_id"`
	Timestamp          int64       `json:"timestamp"`
	Datetime           string      `json:"datetime"`
	Stage              GrowthStage `json:"stage"`
	Temperature        float64     `json:"temperature"`
	Humidity           float64     `json:"humidity"`
	VPD                float64     `json:"vpd"`
	OutsideTemperature float64     `json:"outside_temperature"`
	OutsideHumidity    float64     `json:"outside_humidity"`
	LeafTemperature    *float64    `json:"leaf_temperature"`
	LeafVPD            *float64    `json:"leaf_vpd"`
	TargetHumidity     *float64    `json:"target_humidity"`
}

// Actuator identifies one controllable output.
type Actuator string

const (
	ActuatorHumidifier   Actuator = "humidifier"
	ActuatorDehumidifier Actuator = "dehumidifier"
	ActuatorVentilation  Actuator = "ventilation"
)

// ActuatorState is the on/off state of every output after a control decision.
// Humidifier and dehumidifier are never both true.
type ActuatorState struct {
	Humidifier   bool `json:"humidifier"`
	Dehumidifier bool `json:"dehumidifier"`
	Ventilation  bool `json:"ventilation"`
}

// Get returns the state of a single actuator.
func (s ActuatorState) Get(a Actuator) bool {
	switch a {
	case ActuatorHumidifier:
		return s.Humidifier
	case ActuatorDehumidifier:
		return s.Dehumidifier
	case ActuatorVentilation:
		return s.Ventilation
	}
	return false
}

// ControlEvent records one actuator state transition. Events are
// edge-triggered: one row per transition, not per poll cycle.
type ControlEvent struct {
	ID           int64    `json:"id"`
	Timestamp    int64    `json:"timestamp"`
	Datetime     string   `json:"datetime"`
	Actuator     Actuator `json:"actuator"`
	Action       string   `json:"action"` // "on" or "off"
	TriggerValue float64  `json:"trigger_value"`
}

// Grow is one cultivation run. Exactly one grow is active at a time; its
// stage governs the control band.
type Grow struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Stage     GrowthStage `json:"stage"`
	StartDate string      `json:"start_date"`
	EndDate   *string     `json:"end_date"`
	IsActive  bool        `json:"is_active"`
	Notes     string      `json:"notes"`
}

// GrowStats augments a Grow with sample coverage for listings.
type GrowStats struct {
	Grow
	SampleCount int64  `json:"sample_count"`
	FirstSample *int64 `json:"first_sample"`
	LastSample  *int64 `json:"last_sample"`
}

// Severity grades an anomaly.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Anomaly is one finding from a detection run. Findings are recomputed per
// run and never persisted. Evidence fields are rule-specific.
type Anomaly struct {
	Type      string   `json:"type"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp,omitempty"`

	Value      *float64 `json:"value,omitempty"`
	Change     *float64 `json:"change,omitempty"`
	FromValue  *float64 `json:"from_value,omitempty"`
	ToValue    *float64 `json:"to_value,omitempty"`
	GapMinutes *int64   `json:"gap_minutes,omitempty"`
	MinutesAgo *int64   `json:"minutes_ago,omitempty"`
}

// Snapshot is the realtime-cache view of the latest cycle: the Reading, its
// derived metrics, the humidity target the controller is steering toward and
// whether the cycle ran on a stale fallback reading.
type Snapshot struct {
	Timestamp          int64       `json:"timestamp"`
	Datetime           string      `json:"datetime"`
	Temperature        float64     `json:"temperature"`
	Humidity           float64     `json:"humidity"`
	VPD                float64     `json:"vpd"`
	OutsideTemperature float64     `json:"outside_temperature"`
	OutsideHumidity    float64     `json:"outside_humidity"`
	LeafTemperature    float64     `json:"leaf_temperature"`
	LeafVPD            float64     `json:"leaf_vpd"`
	TargetHumidity     float64     `json:"target_humidity"`
	VPDInRange         bool        `json:"vpd_in_range"`
	Stage              GrowthStage `json:"stage"`
	IndoorSource       string      `json:"indoor_source,omitempty"`
	Degraded           bool        `json:"degraded,omitempty"`
}

// RemoteSample is an indoor sample pushed by (or pulled from) the ESP32
// sensor node, cached until the next control cycle consumes it.
type RemoteSample struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	VPD         float64 `json:"vpd"`
	Timestamp   int64   `json:"timestamp"`
	Datetime    string  `json:"datetime"`
	Source      string  `json:"source"`
}

// SensorStatus mirrors connectivity of both sensors for the dashboard.
type SensorStatus struct {
	Indoor  SensorHealth `json:"indoor"`
	Outdoor SensorHealth `json:"outdoor"`
}

// SensorHealth is the per-sensor connectivity record.
type SensorHealth struct {
	OK         *bool  `json:"ok"`
	Error      string `json:"error,omitempty"`
	Source     string `json:"source,omitempty"`
	LastUpdate string `json:"last_update,omitempty"`
}
