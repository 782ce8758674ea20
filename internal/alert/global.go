package alert

import (
	"fmt"

	"github.com/kjstillabower/flood-risk-service/internal/models"
)

// City-wide escalation thresholds, all strict.
const (
	EmergencyHighCount = 8
	WarningHighCount   = 3
	AttentionModerate  = 5
)

// City-wide tier colours.
const (
	ColorEmergency = "#D32F2F"
	ColorWarning   = "#FF6F00"
	ColorAttention = "#FBC02D"
	ColorNormal    = "#388E3C"
)

// Aggregate counts levels across assessments and applies the escalation table.
// The result depends only on the counts.
func Aggregate(assessments []models.RiskAssessment) models.GlobalAlert {
	var high, moderate, low int
	for _, a := range assessments {
		switch a.Level {
		case models.LevelHigh:
			high++
		case models.LevelModerate:
			moderate++
		default:
			low++
		}
	}
	return FromCounts(high, moderate, low)
}

// FromCounts builds the city-wide alert for the given level counts.
func FromCounts(high, moderate, low int) models.GlobalAlert {
	g := models.GlobalAlert{HighCount: high, ModerateCount: moderate, LowCount: low}
	switch {
	case high > EmergencyHighCount:
		g.Level = models.GlobalEmergency
		g.Color = ColorEmergency
		g.Message = fmt.Sprintf("EMERGÊNCIA: %d áreas em risco alto de alagamento", high)
	case high > WarningHighCount:
		g.Level = models.GlobalWarning
		g.Color = ColorWarning
		g.Message = fmt.Sprintf("ALERTA: %d áreas em risco alto de alagamento", high)
	case high > 0 || moderate > AttentionModerate:
		g.Level = models.GlobalAttention
		g.Color = ColorAttention
		g.Message = fmt.Sprintf("ATENÇÃO: %d áreas em risco alto e %d em risco moderado", high, moderate)
	default:
		g.Level = models.GlobalNormal
		g.Color = ColorNormal
		g.Message = fmt.Sprintf("Situação normal: %d áreas monitoradas sem risco elevado", high+moderate+low)
	}
	return g
}
