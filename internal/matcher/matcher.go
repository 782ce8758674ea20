// Package matcher pairs an area's representative point with the closest
// usable telemetry station.
package matcher

import (
	"github.com/kjstillabower/flood-risk-service/internal/geo"
	"github.com/kjstillabower/flood-risk-service/internal/models"
)

// Nearest scans stations linearly and returns the closest one to point along
// with its distance in km. Stations without valid coordinates are skipped;
// ties keep the first station seen. maxKM > 0 rejects matches beyond that
// distance. ok is false when no station qualifies.
func Nearest(point models.LatLng, stations []models.Station, maxKM float64) (station models.Station, distanceKM float64, ok bool) {
	best := -1
	bestDist := 0.0
	for i := range stations {
		if !stations[i].Location.Valid() {
			continue
		}
		d := geo.Distance(point, stations[i].Location)
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best == -1 {
		return models.Station{}, 0, false
	}
	if maxKM > 0 && bestDist > maxKM {
		return models.Station{}, 0, false
	}
	return stations[best], bestDist, true
}
