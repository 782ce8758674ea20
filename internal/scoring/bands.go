package scoring

import "math"

// AccumulationLambda is the saturation rate of the 24h accumulation curve.
// It yields roughly 0.26 at 10mm and 0.78 at 50mm.
const AccumulationLambda = 0.03

// NormalizeRainfall maps instantaneous precipitation (mm) to [0,1] in steps.
func NormalizeRainfall(mm float64) float64 {
	switch {
	case mm <= 0:
		return 0
	case mm <= 2:
		return 0.2
	case mm <= 5:
		return 0.4
	case mm <= 10:
		return 0.6
	case mm <= 20:
		return 0.8
	default:
		return 1.0
	}
}

// NormalizeAccumulated maps 24h accumulated precipitation (mm) onto a
// saturating exponential curve.
func NormalizeAccumulated(mm float64) float64 {
	if mm <= 0 || math.IsNaN(mm) {
		return 0
	}
	return 1 - math.Exp(-AccumulationLambda*mm)
}

// NormalizeIntensity maps precipitation intensity (mm/h) to [0,1] in steps.
func NormalizeIntensity(mmh float64) float64 {
	switch {
	case mmh <= 0:
		return 0
	case mmh <= 5:
		return 0.2
	case mmh <= 15:
		return 0.4
	case mmh <= 30:
		return 0.6
	case mmh <= 50:
		return 0.8
	default:
		return 1.0
	}
}

// NormalizeHumidity maps relative humidity (%) to [0.2, 0.85].
func NormalizeHumidity(pct float64) float64 {
	switch {
	case pct < 60:
		return 0.2
	case pct < 80:
		return 0.4
	case pct < 90:
		return 0.65
	default:
		return 0.85
	}
}

// NormalizePressure maps atmospheric pressure (hPa) to [0.15, 0.85]. Lower
// pressure is the storm signature and scores higher.
func NormalizePressure(hpa float64) float64 {
	switch {
	case hpa >= 1020:
		return 0.15
	case hpa >= 1010:
		return 0.4
	case hpa >= 1000:
		return 0.7
	default:
		return 0.85
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
