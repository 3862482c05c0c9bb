// Package control holds the hysteresis decision logic and the loop driver
// that runs it on a fixed cadence. The decision functions are pure; all I/O
// lives in the Loop.
package control

import (
	"github.com/jereantequera/Autocann/internal/models"
	"github.com/jereantequera/Autocann/internal/stage"
)

// Decide produces the next humidifier/dehumidifier state from the current
// humidity, the stage's control band and the previous applied state.
//
// Outside the band the corrective actuator engages immediately. Inside the
// band an already-engaged actuator stays latched until humidity crosses the
// band midpoint plus (humidifier) or minus (dehumidifier) the hysteresis
// margin; this is what prevents chatter when humidity oscillates at a
// boundary. Humidifier and dehumidifier are never both on.
func Decide(humidity float64, band stage.TargetRange, margin float64, prev models.ActuatorState) models.ActuatorState {
	next := prev
	mid := (band.Low + band.High) / 2

	switch {
	case humidity < band.Low:
		next.Humidifier = true
		next.Dehumidifier = false
	case humidity > band.High:
		next.Humidifier = false
		next.Dehumidifier = true
	default:
		if !(prev.Humidifier && humidity < mid+margin) {
			next.Humidifier = false
		}
		if !(prev.Dehumidifier && humidity > mid-margin) {
			next.Dehumidifier = false
		}
	}
	return next
}

// DecideVentilation runs the independent ventilation band over the
// inside-minus-outside humidity differential: on above onThreshold, off
// below offThreshold, unchanged in between.
func DecideVentilation(delta, onThreshold, offThreshold float64, prev bool) bool {
	switch {
	case delta > onThreshold:
		return true
	case delta < offThreshold:
		return false
	default:
		return prev
	}
}
