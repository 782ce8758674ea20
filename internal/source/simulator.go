package source

import (
	"math/rand"
	"sync"
	"time"

	"github.com/kjstillabower/flood-risk-service/internal/models"
)

// River levels that raise a simulated hazard alert, in meters.
const (
	RiverMediumLevelM = 3.5
	RiverHighLevelM   = 4.2
)

// SimulatedStations are the fixed points the generator reports on.
var SimulatedStations = []models.Station{
	{ID: "sim-centro", Name: "Estação Centro", Location: models.LatLng{Lat: -8.0631, Lng: -34.8713}},
	{ID: "sim-norte", Name: "Estação Zona Norte", Location: models.LatLng{Lat: -8.0285, Lng: -34.9043}},
	{ID: "sim-sul", Name: "Estação Zona Sul", Location: models.LatLng{Lat: -8.1190, Lng: -34.9050}},
	{ID: "sim-oeste", Name: "Estação Zona Oeste", Location: models.LatLng{Lat: -8.0476, Lng: -34.9511}},
}

// Simulator generates plausible readings when no real data is available.
// It is safe for concurrent use.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator returns a Simulator drawing from rng. A seeded rng makes output reproducible.
func NewSimulator(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{rng: rng}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Snapshot returns a simulated snapshot stamped now.
func (s *Simulator) Snapshot(now time.Time) *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &models.Snapshot{
		Provenance: models.SnapshotSimulated,
		FetchedAt:  now,
		Stations:   make([]models.Station, 0, len(SimulatedStations)),
	}
	for _, st := range SimulatedStations {
		rain := s.uniform(0, 80)
		accumulated := s.uniform(rain, 3*rain)
		if accumulated > 150 {
			accumulated = 150
		}
		river := s.uniform(0.5, 4.5)

		st.Reading = models.Reading{
			RainfallMM:       rain,
			Accumulated24hMM: accumulated,
			IntensityMMH:     s.uniform(0, rain/1.5),
			HumidityPct:      s.uniform(65, 95),
			PressureHPA:      s.uniform(1005, 1020),
			TemperatureC:     s.uniform(24, 31),
			RiverLevelM:      river,
			ObservedAt:       now,
		}
		snap.Stations = append(snap.Stations, st)

		level := ""
		switch {
		case river > RiverHighLevelM:
			level = "ALTO"
		case river > RiverMediumLevelM:
			level = "MÉDIO"
		}
		if level != "" {
			snap.Alerts = append(snap.Alerts, models.HazardAlert{
				Municipality: "Recife",
				Location:     st.Location,
				Level:        level,
				Kind:         "nivel_rio",
				IssuedAt:     now,
			})
		}
	}
	return snap
}
