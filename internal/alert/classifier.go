// Package alert maps risk scores to discrete levels and rolls area results up
// into a single city-wide alert.
package alert

import (
	"errors"
	"fmt"

	"github.com/kjstillabower/flood-risk-service/internal/models"
	"github.com/kjstillabower/flood-risk-service/internal/scoring"
)

// ErrInvalidThresholds is returned when cut-points are misordered or out of range.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Level display colours.
const (
	ColorHigh     = "#FF4444"
	ColorModerate = "#FFA500"
	ColorLow      = "#4CAF50"
)

// Secondary thresholds that append extra recommendations.
const (
	FlashFloodIntensityMMH = 30.0
	RainProbabilityNotePct = 70.0
)

// Thresholds are the two classification cut-points.
type Thresholds struct {
	High float64 `yaml:"high" json:"high"`
	Mid  float64 `yaml:"mid" json:"mid"`
}

// DefaultThresholds returns High 0.7 and Mid 0.4.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.7, Mid: 0.4}
}

// Validate requires 0 < Mid < High <= 1.
func (t Thresholds) Validate() error {
	if t.Mid <= 0 || t.High > 1 || t.Mid >= t.High {
		return fmt.Errorf("%w: want 0 < mid (%v) < high (%v) <= 1", ErrInvalidThresholds, t.Mid, t.High)
	}
	return nil
}

// BandWidth is the width of the MODERADO band.
func (t Thresholds) BandWidth() float64 {
	return t.High - t.Mid
}

var baseRecommendations = map[models.Level][]string{
	models.LevelHigh: {
		"Evite deslocamentos e áreas alagadas",
		"Em emergência, acione a Defesa Civil (199) ou o Corpo de Bombeiros (193)",
		"Procure locais mais altos e seguros",
	},
	models.LevelModerate: {
		"Acompanhe as condições do tempo e os boletins oficiais",
		"Evite rotas conhecidas por alagamento",
	},
	models.LevelLow: {
		"Monitoramento de rotina",
	},
}

const (
	flashFloodWarning = "Chuva intensa: risco de alagamento repentino"
	rainNote          = "Alta probabilidade de chuva: planeje rotas alternativas"
)

// Classification is the discrete outcome for one score.
type Classification struct {
	Level           models.Level
	Color           string
	Recommendations []string
}

// Classifier applies one set of thresholds consistently across a run.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier returns a Classifier using t.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{thresholds: t}
}

// Classify maps score to exactly one level. NaN is treated as 0.
func (c *Classifier) Classify(score float64) Classification {
	level := c.Level(score)
	return Classification{
		Level:           level,
		Color:           Color(level),
		Recommendations: append([]string(nil), baseRecommendations[level]...),
	}
}

// Level returns the level for score without building recommendations.
func (c *Classifier) Level(score float64) models.Level {
	switch {
	case score >= c.thresholds.High:
		return models.LevelHigh
	case score >= c.thresholds.Mid:
		return models.LevelModerate
	default:
		return models.LevelLow
	}
}

// Color returns the display colour for level.
func Color(level models.Level) string {
	switch level {
	case models.LevelHigh:
		return ColorHigh
	case models.LevelModerate:
		return ColorModerate
	default:
		return ColorLow
	}
}

// Recommend returns the level's static recommendations plus extra lines
// triggered by the factor breakdown and any area-specific advice.
func (c *Classifier) Recommend(level models.Level, factors map[string]float64, rainProbability float64, areaAdvice ...string) []string {
	out := append([]string(nil), baseRecommendations[level]...)
	if factors[scoring.FactorIntensity] > FlashFloodIntensityMMH {
		out = append(out, flashFloodWarning)
	}
	if rainProbability >= RainProbabilityNotePct {
		out = append(out, rainNote)
	}
	for _, a := range areaAdvice {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
