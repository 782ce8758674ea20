package client

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/flood-risk-service/internal/circuitbreaker"
	"github.com/kjstillabower/flood-risk-service/internal/models"
)

// Provider names used in metrics, logs and snapshot status.
const (
	ProviderMeteorology = "apac_meteorology"
	ProviderCEMADEN     = "cemaden"
)

// DefaultPressureHPA substitutes a missing pressure reading.
const DefaultPressureHPA = 1013.0

// recifeTZ is used for upstream timestamps that carry no zone.
var recifeTZ = time.FixedZone("BRT", -3*60*60)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

// flexFloat accepts a JSON number, a numeric string (comma or dot decimal) or null.
// Unparseable strings decode as missing rather than failing the whole payload.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	*f = flexFloat{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var v float64
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		v = parsed
	} else if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.Value, f.Valid = v, true
	return nil
}

// Or returns the value, or def when missing.
func (f flexFloat) Or(def float64) float64 {
	if !f.Valid {
		return def
	}
	return f.Value
}

// flexString accepts either a JSON string or a number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(str))
		return nil
	}
	*s = flexString(string(b))
	return nil
}

type apacStation struct {
	ID            flexString `json:"idEstacao"`
	Name          string     `json:"estacao"`
	Latitude      flexFloat  `json:"latitude"`
	Longitude     flexFloat  `json:"longitude"`
	Precipitation flexFloat  `json:"precipitacao"`
	Accumulated   flexFloat  `json:"acumulado_24h"`
	Intensity     flexFloat  `json:"intensidade"`
	Humidity      flexFloat  `json:"umidade"`
	Pressure      flexFloat  `json:"pressao"`
	Temperature   flexFloat  `json:"temperatura"`
	DateTime      string     `json:"dataHora"`
}

type cemadenAlert struct {
	Municipality string    `json:"municipio"`
	Latitude     flexFloat `json:"latitude"`
	Longitude    flexFloat `json:"longitude"`
	RiskLevel    string    `json:"nivelRisco"`
	AlertType    string    `json:"tipoAlerta"`
	DateTime     string    `json:"dataHora"`
}

func parseTimestamp(s string, def time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, recifeTZ); err == nil {
			return t
		}
	}
	return def
}

func mapStation(s apacStation, now time.Time) models.Station {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = "Desconhecida"
	}
	return models.Station{
		ID:   string(s.ID),
		Name: name,
		Location: models.LatLng{
			Lat: s.Latitude.Or(0),
			Lng: s.Longitude.Or(0),
		},
		Reading: models.Reading{
			RainfallMM:       s.Precipitation.Or(0),
			Accumulated24hMM: s.Accumulated.Or(0),
			IntensityMMH:     s.Intensity.Or(0),
			HumidityPct:      s.Humidity.Or(0),
			PressureHPA:      s.Pressure.Or(DefaultPressureHPA),
			TemperatureC:     s.Temperature.Or(0),
			ObservedAt:       parseTimestamp(s.DateTime, now),
		},
	}
}

func mapAlert(a cemadenAlert, now time.Time) models.HazardAlert {
	orUnknown := func(v, def string) string {
		if v = strings.TrimSpace(v); v == "" {
			return def
		}
		return v
	}
	return models.HazardAlert{
		Municipality: orUnknown(a.Municipality, "Desconhecida"),
		Location: models.LatLng{
			Lat: a.Latitude.Or(0),
			Lng: a.Longitude.Or(0),
		},
		Level:    orUnknown(a.RiskLevel, "DESCONHECIDO"),
		Kind:     orUnknown(a.AlertType, "DESCONHECIDO"),
		IssuedAt: parseTimestamp(a.DateTime, now),
	}
}

// Stations fetches the 24h meteorology listing. Rows without coordinates are dropped.
func (c *APACClient) Stations(ctx context.Context, breaker *circuitbreaker.CircuitBreaker) ([]models.Station, error) {
	var raw []apacStation
	if err := c.getJSON(ctx, ProviderMeteorology, MeteorologyPath, breaker, &raw); err != nil {
		return nil, err
	}
	now := c.clock.Now()
	out := make([]models.Station, 0, len(raw))
	for _, s := range raw {
		if !s.Latitude.Valid || !s.Longitude.Valid {
			continue
		}
		out = append(out, mapStation(s, now))
	}
	return out, nil
}

// Alerts fetches the CEMADEN hazard alert listing. Rows without coordinates are dropped.
func (c *APACClient) Alerts(ctx context.Context, breaker *circuitbreaker.CircuitBreaker) ([]models.HazardAlert, error) {
	var raw []cemadenAlert
	if err := c.getJSON(ctx, ProviderCEMADEN, CEMADENPath, breaker, &raw); err != nil {
		return nil, err
	}
	now := c.clock.Now()
	out := make([]models.HazardAlert, 0, len(raw))
	for _, a := range raw {
		if !a.Latitude.Valid || !a.Longitude.Valid {
			continue
		}
		out = append(out, mapAlert(a, now))
	}
	return out, nil
}

// MeteorologyProvider contributes station readings to a snapshot.
type MeteorologyProvider struct {
	client  *APACClient
	breaker *circuitbreaker.CircuitBreaker
}

// NewMeteorologyProvider returns a provider over c. breaker may be nil.
func NewMeteorologyProvider(c *APACClient, breaker *circuitbreaker.CircuitBreaker) *MeteorologyProvider {
	return &MeteorologyProvider{client: c, breaker: breaker}
}

func (p *MeteorologyProvider) Name() string { return ProviderMeteorology }

func (p *MeteorologyProvider) Fetch(ctx context.Context) (models.Batch, error) {
	stations, err := p.client.Stations(ctx, p.breaker)
	if err != nil {
		return models.Batch{}, err
	}
	return models.Batch{Stations: stations}, nil
}

// CEMADENProvider contributes hazard alerts to a snapshot.
type CEMADENProvider struct {
	client  *APACClient
	breaker *circuitbreaker.CircuitBreaker
}

// NewCEMADENProvider returns a provider over c. breaker may be nil.
func NewCEMADENProvider(c *APACClient, breaker *circuitbreaker.CircuitBreaker) *CEMADENProvider {
	return &CEMADENProvider{client: c, breaker: breaker}
}

func (p *CEMADENProvider) Name() string { return ProviderCEMADEN }

func (p *CEMADENProvider) Fetch(ctx context.Context) (models.Batch, error) {
	alerts, err := p.client.Alerts(ctx, p.breaker)
	if err != nil {
		return models.Batch{}, err
	}
	return models.Batch{Alerts: alerts}, nil
}
