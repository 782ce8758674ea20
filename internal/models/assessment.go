package models

import "time"

// Risk levels for a single area.
type Level string

const (
	LevelLow      Level = "BAIXO"
	LevelModerate Level = "MODERADO"
	LevelHigh     Level = "ALTO"
)

// Rank orders levels by severity: BAIXO < MODERADO < ALTO.
func (l Level) Rank() int {
	switch l {
	case LevelHigh:
		return 2
	case LevelModerate:
		return 1
	default:
		return 0
	}
}

// Provenance of an assessment.
type Provenance string

const (
	ProvenanceLive      Provenance = "LIVE"
	ProvenanceFallback  Provenance = "FALLBACK"
	ProvenanceSimulated Provenance = "SIMULATED"
)

// RiskAssessment is the scored, classified result for one area in one cycle.
type RiskAssessment struct {
	AreaID            string             `json:"areaId"`
	AreaName          string             `json:"areaName"`
	Region            string             `json:"region"`
	StationID         string             `json:"stationId,omitempty"`
	StationName       string             `json:"stationName,omitempty"`
	StationDistanceKM float64            `json:"stationDistanceKm,omitempty"`
	RiskScore         float64            `json:"riskScore"`
	Level             Level              `json:"level"`
	Color             string             `json:"color"`
	Provenance        Provenance         `json:"provenance"`
	Factors           map[string]float64 `json:"factors"`
	Recommendations   []string           `json:"recommendations"`
	RainProbability   float64            `json:"rainProbability"`
	FloodProbability  float64            `json:"floodProbability"`
	Description       string             `json:"description"`
	AreaKM2           float64            `json:"areaKm2"`
	CriticalPoints    []string           `json:"criticalPoints,omitempty"`
	AssessedAt        time.Time          `json:"assessedAt"`
}

// City-wide alert tiers, lowest to highest.
type GlobalLevel string

const (
	GlobalNormal    GlobalLevel = "NORMAL"
	GlobalAttention GlobalLevel = "ATENCAO"
	GlobalWarning   GlobalLevel = "ALERTA"
	GlobalEmergency GlobalLevel = "EMERGENCIA"
)

// GlobalAlert aggregates every area assessment into one city-wide alert.
type GlobalAlert struct {
	Level         GlobalLevel `json:"level"`
	Color         string      `json:"color"`
	Message       string      `json:"message"`
	HighCount     int         `json:"highCount"`
	ModerateCount int         `json:"moderateCount"`
	LowCount      int         `json:"lowCount"`
}

// Stats summarises one assessment cycle.
type Stats struct {
	TotalAreas         int                `json:"totalAreas"`
	ByLevel            map[Level]int      `json:"byLevel"`
	ByProvenance       map[Provenance]int `json:"byProvenance"`
	StationsAvailable  int                `json:"stationsAvailable"`
	HazardAlerts       int                `json:"hazardAlerts"`
	AverageScore       float64            `json:"averageScore"`
	MaxScore           float64            `json:"maxScore"`
	MaxScoreArea       string             `json:"maxScoreArea,omitempty"`
	SnapshotProvenance string             `json:"snapshotProvenance"`
	SnapshotAgeSeconds float64            `json:"snapshotAgeSeconds"`
	SnapshotStale      bool               `json:"snapshotStale"`
	Providers          []ProviderStatus   `json:"providers"`
}

// Result is the full output of one engine cycle.
type Result struct {
	RunID       string           `json:"runId"`
	GlobalAlert GlobalAlert      `json:"globalAlert"`
	Assessments []RiskAssessment `json:"assessments"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Stats       Stats            `json:"stats"`
}
