package models

// LatLng is a coordinate pair in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the point carries usable coordinates. Upstream feeds
// use 0 for "unknown", so a zero on either axis is treated as missing.
func (p LatLng) Valid() bool {
	if p.Lat == 0 || p.Lng == 0 {
		return false
	}
	if p.Lat != p.Lat || p.Lng != p.Lng {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Area is a monitored flood-risk zone. Areas are loaded once and never
// mutated while assessments run.
type Area struct {
	ID             string   `json:"id" yaml:"id" validate:"required"`
	Name           string   `json:"name" yaml:"name" validate:"required"`
	Region         string   `json:"region" yaml:"region" validate:"required"`
	Polygon        []LatLng `json:"polygon" yaml:"polygon"`
	Vulnerability  float64  `json:"vulnerability" yaml:"vulnerability" validate:"gte=0,lte=1"`
	CriticalPoints []string `json:"criticalPoints" yaml:"critical_points"`
	Neighborhoods  []string `json:"neighborhoods,omitempty" yaml:"neighborhoods"`
	RiskType       string   `json:"riskType,omitempty" yaml:"risk_type"`
	Severity       string   `json:"severity,omitempty" yaml:"severity" validate:"omitempty,oneof=alta media baixa"`
	FloodHistory   int      `json:"floodHistory,omitempty" yaml:"flood_history" validate:"gte=0"`
}
