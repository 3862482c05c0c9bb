// Package stage maps growth stages to their target environmental ranges.
package stage

import (
	"fmt"

	"github.com/jereantequera/Autocann/internal/models"
	"github.com/jereantequera/Autocann/internal/vpd"
)

// Metric names the quantity a TargetRange constrains.
type Metric string

const (
	MetricVPD      Metric = "vpd"      // kPa
	MetricHumidity Metric = "humidity" // percent
)

// TargetRange is the band a stage keeps its metric inside. Low < High.
type TargetRange struct {
	Metric Metric  `json:"metric"`
	Low    float64 `json:"min"`
	High   float64 `json:"max"`
}

// Contains reports whether v falls inside the range, bounds included.
func (r TargetRange) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// ErrUnknownStage is a configuration error: the control loop must halt
// rather than guess a default range.
type ErrUnknownStage struct {
	Stage models.GrowthStage
}

func (e *ErrUnknownStage) Error() string {
	return fmt.Sprintf("unknown growth stage %q", e.Stage)
}

var ranges = map[models.GrowthStage]TargetRange{
	models.StageEarlyVeg:  {Metric: MetricVPD, Low: 0.6, High: 1.0},
	models.StageLateVeg:   {Metric: MetricVPD, Low: 0.8, High: 1.2},
	models.StageFlowering: {Metric: MetricVPD, Low: 1.2, High: 1.5},
	models.StageDry:       {Metric: MetricHumidity, Low: 60, High: 65},
}

// Range returns the target range for a stage, or ErrUnknownStage.
func Range(s models.GrowthStage) (TargetRange, error) {
	r, ok := ranges[s]
	if !ok {
		return TargetRange{}, &ErrUnknownStage{Stage: s}
	}
	return r, nil
}

// ControlBand resolves the humidity band the actuators steer toward at the
// current chamber temperature. The dry stage constrains humidity directly;
// VPD stages convert their VPD range via the Tetens inversion. Note the
// inversion flips the bounds: the low VPD bound is the high humidity bound.
func ControlBand(s models.GrowthStage, temperatureC float64) (TargetRange, error) {
	r, err := Range(s)
	if err != nil {
		return TargetRange{}, err
	}
	if r.Metric == MetricHumidity {
		return r, nil
	}
	return TargetRange{
		Metric: MetricHumidity,
		Low:    vpd.HumidityForVPD(temperatureC, r.High),
		High:   vpd.HumidityForVPD(temperatureC, r.Low),
	}, nil
}

// TargetHumidity is the midpoint of the control band: the value the
// controller drives humidity toward once a correction starts.
func TargetHumidity(s models.GrowthStage, temperatureC float64) (float64, error) {
	band, err := ControlBand(s, temperatureC)
	if err != nil {
		return 0, err
	}
	return (band.Low + band.High) / 2, nil
}
