package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned when a weight profile cannot be used.
var ErrInvalidWeights = errors.New("invalid weight profile")

const weightTolerance = 1e-6

// Weights is the versionable weight profile for the live scoring path.
type Weights struct {
	Rainfall      float64 `yaml:"rainfall" json:"rainfall"`
	Intensity     float64 `yaml:"intensity" json:"intensity"`
	Accumulated   float64 `yaml:"accumulated" json:"accumulated"`
	Humidity      float64 `yaml:"humidity" json:"humidity"`
	Pressure      float64 `yaml:"pressure" json:"pressure"`
	Vulnerability float64 `yaml:"vulnerability" json:"vulnerability"`
}

// DefaultWeights returns the standard profile.
func DefaultWeights() Weights {
	return Weights{
		Rainfall:      0.30,
		Intensity:     0.15,
		Accumulated:   0.25,
		Humidity:      0.10,
		Pressure:      0.05,
		Vulnerability: 0.15,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Rainfall + w.Intensity + w.Accumulated + w.Humidity + w.Pressure + w.Vulnerability
}

// Validate requires non-negative weights summing to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"rainfall":      w.Rainfall,
		"intensity":     w.Intensity,
		"accumulated":   w.Accumulated,
		"humidity":      w.Humidity,
		"pressure":      w.Pressure,
		"vulnerability": w.Vulnerability,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s weight %v is negative", ErrInvalidWeights, name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// DefaultRegionFactor applies to regions missing from the table.
const DefaultRegionFactor = 0.45

var regionFactors = map[string]float64{
	"Centro":     0.75,
	"Zona Sul":   0.70,
	"Zona Norte": 0.60,
	"Zona Oeste": 0.55,
}

// RegionFactor returns the base fallback factor for an administrative region.
func RegionFactor(region string) float64 {
	if f, ok := regionFactors[region]; ok {
		return f
	}
	return DefaultRegionFactor
}
