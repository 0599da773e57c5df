// Package aqi computes an air quality index from pollutant readings.
//
// PM2.5 and NO2 are scored with piecewise-linear interpolation over the US
// EPA breakpoint tables. CO2 has no EPA index; it is scored linearly above
// a 400 ppm ambient baseline so that enclosed-space readings still register.
// The overall AQI is the maximum sub-index, capped at 500.
package aqi

// Severity labels, from cleanest to worst.
const (
	LevelGood      = "Good"
	LevelModerate  = "Moderate"
	LevelUnhealthy = "Unhealthy"
	LevelHazardous = "Hazardous"
)

// Result carries a computed index alongside its alert classification.
type Result struct {
	AQI     float64
	Level   string
	IsAlert bool
}

type breakpoint struct {
	concLo, concHi float64
	aqiLo, aqiHi   float64
}

// EPA PM2.5 breakpoints (µg/m³, 24-hour).
var pm25Breakpoints = []breakpoint{
	{0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// EPA NO2 breakpoints (ppb, 1-hour).
var no2Breakpoints = []breakpoint{
	{0, 53, 0, 50},
	{54, 100, 51, 100},
	{101, 360, 101, 150},
	{361, 649, 151, 200},
	{650, 1249, 201, 300},
	{1250, 1649, 301, 400},
	{1650, 2049, 401, 500},
}

const (
	co2Baseline = 400 // ppm, outdoor ambient
	co2PerPoint = 10  // ppm of excess CO2 per index point
	maxIndex    = 500
)

// Compute maps non-negative pollutant readings to an AQI value and severity
// level. It is pure and deterministic; callers are responsible for rejecting
// negative inputs before calling.
func Compute(pm25, no2, co2 float64) (float64, string) {
	idx := subIndex(pm25, pm25Breakpoints)
	if v := subIndex(no2, no2Breakpoints); v > idx {
		idx = v
	}
	if v := co2SubIndex(co2); v > idx {
		idx = v
	}
	return idx, Level(idx)
}

// Evaluate computes the index and classifies it against the alert threshold.
// A reading is an alert when its AQI is strictly above the threshold.
func Evaluate(pm25, no2, co2, threshold float64) Result {
	v, level := Compute(pm25, no2, co2)
	return Result{AQI: v, Level: level, IsAlert: v > threshold}
}

// Level maps an index value to its severity label.
func Level(index float64) string {
	switch {
	case index <= 50:
		return LevelGood
	case index <= 100:
		return LevelModerate
	case index <= 300:
		return LevelUnhealthy
	default:
		return LevelHazardous
	}
}

func subIndex(conc float64, table []breakpoint) float64 {
	if conc <= 0 {
		return 0
	}
	for _, bp := range table {
		if conc <= bp.concHi {
			if conc < bp.concLo {
				// Falls in the gap between table rows; snap to segment start.
				return bp.aqiLo
			}
			return bp.aqiLo + (conc-bp.concLo)/(bp.concHi-bp.concLo)*(bp.aqiHi-bp.aqiLo)
		}
	}
	return maxIndex
}

func co2SubIndex(conc float64) float64 {
	if conc <= co2Baseline {
		return 0
	}
	idx := (conc - co2Baseline) / co2PerPoint
	if idx > maxIndex {
		return maxIndex
	}
	return idx
}
