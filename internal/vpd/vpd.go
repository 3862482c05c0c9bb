// Package vpd computes vapor pressure deficit from temperature/humidity
// pairs using the Tetens saturation approximation.
package vpd

import (
	"fmt"
	"math"
)

// Physically plausible input band. Readings outside of it are rejected, not
// clamped: a -40°C chamber reading is a sensor fault, not weather.
const (
	MinTemperature = -10.0
	MaxTemperature = 60.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

// ErrInvalidInput marks a temperature/humidity pair outside the plausible
// band. Callers treat it as "reading rejected".
type ErrInvalidInput struct {
	Temperature float64
	Humidity    float64
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid sensor input: temperature=%.2f°C humidity=%.2f%%", e.Temperature, e.Humidity)
}

func validate(temperatureC, humidityPct float64) error {
	if humidityPct < MinHumidity || humidityPct > MaxHumidity ||
		temperatureC < MinTemperature || temperatureC > MaxTemperature {
		return &ErrInvalidInput{Temperature: temperatureC, Humidity: humidityPct}
	}
	return nil
}

// saturationPressure returns the saturation vapor pressure in kPa at the
// given temperature (Tetens formula).
func saturationPressure(temperatureC float64) float64 {
	return 0.6108 * math.Exp((17.27*temperatureC)/(temperatureC+237.3))
}

// Calculate returns the vapor pressure deficit in kPa, rounded to two
// decimals and never negative.
func Calculate(temperatureC, humidityPct float64) (float64, error) {
	if err := validate(temperatureC, humidityPct); err != nil {
		return 0, err
	}
	svp := saturationPressure(temperatureC)
	avp := svp * (humidityPct / 100.0)
	deficit := svp - avp
	if deficit < 0 {
		deficit = 0
	}
	return round2(deficit), nil
}

// HumidityForVPD returns the relative humidity that yields the target VPD at
// the given temperature, clamped to [0,100].
func HumidityForVPD(temperatureC, targetVPDkPa float64) float64 {
	svp := saturationPressure(temperatureC)
	avp := svp - targetVPDkPa
	humidity := (avp / svp) * 100.0
	if humidity < 0 {
		humidity = 0
	} else if humidity > 100 {
		humidity = 100
	}
	return round2(humidity)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
