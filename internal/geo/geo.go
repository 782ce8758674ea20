// Package geo holds the small amount of spherical and planar geometry the
// engine needs at city scale.
package geo

import (
	"math"

	"github.com/kjstillabower/flood-risk-service/internal/models"
)

const (
	// EarthRadiusKM is the mean Earth radius used by Distance.
	EarthRadiusKM = 6371.0

	// KMPerDegree approximates the length of one degree near the equator.
	KMPerDegree = 111.32

	// DefaultMinAreaKM2 is returned by PlanarArea for degenerate polygons.
	DefaultMinAreaKM2 = 0.5
)

// DefaultCenter is the Recife city center, used when a polygon has no vertices.
var DefaultCenter = models.LatLng{Lat: -8.0631, Lng: -34.8711}

// Distance returns the haversine distance in kilometres between a and b.
func Distance(a, b models.LatLng) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Centroid returns the arithmetic mean of the polygon's vertices, or def when
// the polygon is empty. A repeated closing vertex is not double counted.
func Centroid(poly []models.LatLng, def models.LatLng) models.LatLng {
	poly = openRing(poly)
	if len(poly) == 0 {
		return def
	}
	var sumLat, sumLng float64
	for _, p := range poly {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(poly))
	return models.LatLng{Lat: sumLat / n, Lng: sumLng / n}
}

// PlanarArea approximates the polygon's area in km² with the shoelace formula
// on raw degrees scaled by KMPerDegree². Polygons with fewer than three
// vertices, or with zero computed area, return min.
func PlanarArea(poly []models.LatLng, min float64) float64 {
	poly = openRing(poly)
	if len(poly) < 3 {
		return min
	}
	var sum float64
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i].Lng*poly[j].Lat - poly[j].Lng*poly[i].Lat
	}
	area := math.Abs(sum) / 2 * KMPerDegree * KMPerDegree
	if area == 0 {
		return min
	}
	return area
}

// openRing drops an explicit closing vertex so rings may be given either way.
func openRing(poly []models.LatLng) []models.LatLng {
	if len(poly) > 1 && poly[0] == poly[len(poly)-1] {
		return poly[:len(poly)-1]
	}
	return poly
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
