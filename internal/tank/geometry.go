// Package tank models the physical tank: converting an ultrasonic air-gap
// measurement plus an oil temperature into a corrected litres figure.
package tank

// Config describes the tank geometry and the thermal properties of the oil.
// Dimensions are external measurements in centimetres.
type Config struct {
	CapacityLitres       float64
	LengthCM             float64
	WidthCM              float64
	HeightCM             float64
	ReferenceTempC       float64
	ExpansionCoefficient float64 // volumetric, per degree C
	DensityAtRefKgM3     float64 // oil density at the reference temperature
}

// CorrectedVolume is the output of the geometry/thermal model.
type CorrectedVolume struct {
	Litres     float64
	OilDepthCM float64
}

// Density estimates the oil density at the given temperature. Oil expands
// as it warms, so density falls with temperature.
func Density(cfg Config, temperatureC float64) float64 {
	return cfg.DensityAtRefKgM3 / (1 + cfg.ExpansionCoefficient*(temperatureC-cfg.ReferenceTempC))
}

// CorrectionFactor scales a volume measured at ambient temperature to the
// equivalent volume at the reference temperature. It is the density ratio
// density(T)/density(Tref): the same physical depth of warm oil holds less
// mass, so warmer-than-reference readings scale down and colder readings
// scale up. At T == Tref the factor is exactly 1.
func CorrectionFactor(cfg Config, temperatureC float64) float64 {
	return Density(cfg, temperatureC) / cfg.DensityAtRefKgM3
}

// CorrectVolume converts an air-gap measurement and temperature into a
// reference-temperature litres figure, clamped to [0, capacity].
//
// Out-of-range air gaps are clamped to the tank bounds rather than
// rejected; a sensor glitch should degrade a single value, not fail the
// pipeline.
func CorrectVolume(cfg Config, airGapCM, temperatureC float64) CorrectedVolume {
	gap := clamp(airGapCM, 0, cfg.HeightCM)
	oilDepth := cfg.HeightCM - gap

	// cm^3 -> litres
	rawLitres := cfg.LengthCM * cfg.WidthCM * oilDepth / 1000

	litres := rawLitres * CorrectionFactor(cfg, temperatureC)
	return CorrectedVolume{
		Litres:     clamp(litres, 0, cfg.CapacityLitres),
		OilDepthCM: oilDepth,
	}
}

// TemperatureCompensated converts a stored litres figure back to its
// reference-temperature equivalent. Used when comparing readings taken at
// different ambient temperatures.
func TemperatureCompensated(cfg Config, litres, temperatureC float64) float64 {
	return litres / (1 + cfg.ExpansionCoefficient*(temperatureC-cfg.ReferenceTempC))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
