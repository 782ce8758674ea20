// Package scoring converts raw station signals and static area vulnerability
// into a single flood-risk score in [0,1].
package scoring

import (
	"fmt"

	"github.com/kjstillabower/flood-risk-service/internal/geo"
	"github.com/kjstillabower/flood-risk-service/internal/models"
)

// Factor keys reported in every score breakdown.
const (
	FactorRainfall          = "rainfall_mm"
	FactorAccumulated       = "accumulated_24h_mm"
	FactorIntensity         = "intensity_mmh"
	FactorHumidity          = "humidity_pct"
	FactorPressure          = "pressure_hpa"
	FactorRainfallNorm      = "rainfall_norm"
	FactorAccumulatedNorm   = "accumulated_24h_norm"
	FactorIntensityNorm     = "intensity_norm"
	FactorHumidityNorm      = "humidity_norm"
	FactorPressureNorm      = "pressure_norm"
	FactorVulnerability     = "vulnerability"
	FactorHazardAdjustment  = "hazard_adjustment"
	FactorStationDistanceKM = "station_distance_km"
	FactorRegion            = "region_factor"
	FactorJitter            = "jitter"
)

// Hazard adjustments added to live scores near an active alert.
const (
	HazardMediumBonus = 0.1
	HazardHighBonus   = 0.2
)

// DefaultHazardRadiusKM bounds how far an alert reaches from a station.
const DefaultHazardRadiusKM = 15.0

// Path identifies which scoring branch produced a score.
type Path string

const (
	PathLive     Path = "live"
	PathFallback Path = "fallback"
)

// Config holds the tunable parts of the scorer.
type Config struct {
	Weights        Weights
	HazardRadiusKM float64
	Jitter         Jitter
}

// DefaultConfig returns the standard weights, a 15km hazard radius and 0.05 jitter.
func DefaultConfig() Config {
	return Config{
		Weights:        DefaultWeights(),
		HazardRadiusKM: DefaultHazardRadiusKM,
		Jitter:         Jitter{Amplitude: 0.05},
	}
}

// Validate checks the weight profile and hazard radius. Jitter bounds depend on
// classification thresholds and are checked by ValidateJitter.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.HazardRadiusKM < 0 {
		return fmt.Errorf("hazard radius must be non-negative, got %v", c.HazardRadiusKM)
	}
	if c.Jitter.Amplitude < 0 {
		return fmt.Errorf("jitter amplitude must be non-negative, got %v", c.Jitter.Amplitude)
	}
	return nil
}

// ValidateJitter ensures jitter can move a score across at most one band,
// given the width of the middle band.
func (c Config) ValidateJitter(bandWidth float64) error {
	if 2*c.Jitter.Amplitude >= bandWidth {
		return fmt.Errorf("jitter amplitude %.3f too large for band width %.3f", c.Jitter.Amplitude, bandWidth)
	}
	return nil
}

// Score is the outcome for one area.
type Score struct {
	Value      float64
	Factors    map[string]float64
	Provenance models.Provenance
	Path       Path
}

// Input bundles what the scorer needs for one area.
type Input struct {
	Area       models.Area
	Station    *models.Station
	DistanceKM float64
	Alerts     []models.HazardAlert
	// Live is true only for a fresh snapshot from real providers.
	Live bool
	// Simulated is true when the snapshot came from the generator.
	Simulated bool
	// Cycle varies the fallback jitter between refresh cycles.
	Cycle int64
}

// Scorer is safe for concurrent use.
type Scorer struct {
	cfg Config
}

// NewScorer returns a Scorer using cfg.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score dispatches to the live path when a station is matched on a live
// snapshot, otherwise to the fallback path.
func (s *Scorer) Score(in Input) Score {
	if in.Station != nil && in.Live {
		return s.live(in)
	}
	return s.fallback(in)
}

func (s *Scorer) live(in Input) Score {
	r := in.Station.Reading
	w := s.cfg.Weights

	rain := NormalizeRainfall(r.RainfallMM)
	acc := NormalizeAccumulated(r.Accumulated24hMM)
	intensity := NormalizeIntensity(r.IntensityMMH)
	humidity := NormalizeHumidity(r.HumidityPct)
	pressure := NormalizePressure(r.PressureHPA)
	vuln := clamp01(in.Area.Vulnerability)

	value := rain*w.Rainfall +
		intensity*w.Intensity +
		acc*w.Accumulated +
		humidity*w.Humidity +
		pressure*w.Pressure +
		vuln*w.Vulnerability

	adj := s.hazardAdjustment(in.Station.Location, in.Alerts)
	value = clamp01(value + adj)

	return Score{
		Value: value,
		Factors: map[string]float64{
			FactorRainfall:          r.RainfallMM,
			FactorAccumulated:       r.Accumulated24hMM,
			FactorIntensity:         r.IntensityMMH,
			FactorHumidity:          r.HumidityPct,
			FactorPressure:          r.PressureHPA,
			FactorRainfallNorm:      rain,
			FactorAccumulatedNorm:   acc,
			FactorIntensityNorm:     intensity,
			FactorHumidityNorm:      humidity,
			FactorPressureNorm:      pressure,
			FactorVulnerability:     vuln,
			FactorHazardAdjustment:  adj,
			FactorStationDistanceKM: in.DistanceKM,
		},
		Provenance: models.ProvenanceLive,
		Path:       PathLive,
	}
}

// hazardAdjustment returns the single largest bonus among alerts within the
// hazard radius of the station.
func (s *Scorer) hazardAdjustment(at models.LatLng, alerts []models.HazardAlert) float64 {
	var best float64
	for _, a := range alerts {
		if !a.Location.Valid() {
			continue
		}
		if geo.Distance(at, a.Location) > s.cfg.HazardRadiusKM {
			continue
		}
		switch a.Severity() {
		case models.HazardHigh:
			best = HazardHighBonus
		case models.HazardMedium:
			if best < HazardMediumBonus {
				best = HazardMediumBonus
			}
		}
		if best == HazardHighBonus {
			break
		}
	}
	return best
}

func (s *Scorer) fallback(in Input) Score {
	vuln := clamp01(in.Area.Vulnerability)
	region := RegionFactor(in.Area.Region)
	jitter := s.cfg.Jitter.For(in.Area.ID, in.Cycle)
	value := clamp01((vuln+region)/2 + jitter)

	prov := models.ProvenanceFallback
	if in.Simulated {
		prov = models.ProvenanceSimulated
	}
	return Score{
		Value: value,
		Factors: map[string]float64{
			FactorVulnerability: vuln,
			FactorRegion:        region,
			FactorJitter:        jitter,
		},
		Provenance: prov,
		Path:       PathFallback,
	}
}
