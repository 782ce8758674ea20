package models

import (
	"strings"
	"time"
)

// Provenance of a consolidated snapshot.
const (
	SnapshotLive      = "live"
	SnapshotSimulated = "simulated"
)

// Reading is one observation bundle reported by a station.
type Reading struct {
	RainfallMM       float64   `json:"rainfallMm"`
	Accumulated24hMM float64   `json:"accumulated24hMm"`
	IntensityMMH     float64   `json:"intensityMmh"`
	HumidityPct      float64   `json:"humidityPct"`
	PressureHPA      float64   `json:"pressureHpa"`
	TemperatureC     float64   `json:"temperatureC"`
	RiverLevelM      float64   `json:"riverLevelM,omitempty"`
	ObservedAt       time.Time `json:"observedAt"`
}

// Station is a telemetry source at a fixed point.
type Station struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Location LatLng  `json:"location"`
	Reading  Reading `json:"reading"`
}

// Hazard severities derived from upstream alert levels.
const (
	HazardNone   = "none"
	HazardMedium = "medium"
	HazardHigh   = "high"
)

// HazardAlert is a discrete alert (river level, landslide) issued for a point.
type HazardAlert struct {
	Municipality string    `json:"municipality"`
	Location     LatLng    `json:"location"`
	Level        string    `json:"level"`
	Kind         string    `json:"kind"`
	IssuedAt     time.Time `json:"issuedAt"`
}

// Severity maps the upstream level label to none, medium or high.
func (a HazardAlert) Severity() string {
	switch strings.ToUpper(strings.TrimSpace(a.Level)) {
	case "ALTO", "CRÍTICO", "CRITICO", "MUITO ALTO", "HIGH", "CRITICAL":
		return HazardHigh
	case "MÉDIO", "MEDIO", "MODERADO", "MEDIUM", "MODERATE":
		return HazardMedium
	default:
		return HazardNone
	}
}

// ProviderStatus records how one upstream provider behaved during a fetch cycle.
type ProviderStatus struct {
	Name          string        `json:"name"`
	OK            bool          `json:"ok"`
	Items         int           `json:"items"`
	ErrorCategory string        `json:"errorCategory,omitempty"`
	Duration      time.Duration `json:"durationNs"`
}

// Snapshot is the consolidated result of polling every provider once.
// A published snapshot is shared by pointer and must not be modified.
type Snapshot struct {
	Stations   []Station        `json:"stations"`
	Alerts     []HazardAlert    `json:"alerts"`
	Provenance string           `json:"provenance"`
	FetchedAt  time.Time        `json:"fetchedAt"`
	Providers  []ProviderStatus `json:"providers"`
}

// Live reports whether the snapshot came from at least one real provider.
func (s *Snapshot) Live() bool {
	return s != nil && s.Provenance == SnapshotLive
}

// Batch is what a single provider contributes to a snapshot.
type Batch struct {
	Stations []Station
	Alerts   []HazardAlert
}
