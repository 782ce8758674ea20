// Package areas loads and indexes the monitored flood-risk areas. The table is
// read once at startup and is read-only afterwards.
package areas

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/flood-risk-service/internal/models"
)

// ErrInvalidArea is returned when an area record fails validation.
var ErrInvalidArea = errors.New("invalid area")

var validate = validator.New()

type areaFile struct {
	Areas []models.Area `yaml:"areas"`
}

// Load returns the areas in path, or the built-in Recife table when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(Recife())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read areas file: %w", err)
	}
	var f areaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse areas file: %w", err)
	}
	if len(f.Areas) == 0 {
		return nil, fmt.Errorf("%w: %s defines no areas", ErrInvalidArea, path)
	}
	return NewCatalog(f.Areas)
}

// Validate checks every record and rejects duplicate ids. An empty polygon is
// allowed (the area is always scored on the fallback path), but any vertex
// present must have valid coordinates.
func Validate(list []models.Area) error {
	seen := make(map[string]struct{}, len(list))
	for i, a := range list {
		if err := validate.Struct(a); err != nil {
			return fmt.Errorf("%w: area %d (%q): %v", ErrInvalidArea, i, a.ID, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidArea, a.ID)
		}
		seen[a.ID] = struct{}{}
		for j, p := range a.Polygon {
			if !p.Valid() {
				return fmt.Errorf("%w: area %q vertex %d has invalid coordinates", ErrInvalidArea, a.ID, j)
			}
		}
	}
	return nil
}

// Catalog is an immutable, indexed set of areas.
type Catalog struct {
	areas []models.Area
	byID  map[string]int
}

// NewCatalog validates list and indexes it. The slice is copied.
func NewCatalog(list []models.Area) (*Catalog, error) {
	if err := Validate(list); err != nil {
		return nil, err
	}
	c := &Catalog{
		areas: append([]models.Area(nil), list...),
		byID:  make(map[string]int, len(list)),
	}
	for i, a := range c.areas {
		c.byID[a.ID] = i
	}
	return c, nil
}

// All returns the areas in load order.
func (c *Catalog) All() []models.Area {
	return c.areas
}

// Len returns the number of areas.
func (c *Catalog) Len() int {
	return len(c.areas)
}

// ByID returns the area with id.
func (c *Catalog) ByID(id string) (models.Area, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Area{}, false
	}
	return c.areas[i], true
}

// ByNeighborhood returns the areas that include the named neighborhood.
func (c *Catalog) ByNeighborhood(name string) []models.Area {
	var out []models.Area
	for _, a := range c.areas {
		for _, n := range a.Neighborhoods {
			if n == name {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// BySeverity returns the areas tagged with the given severity.
func (c *Catalog) BySeverity(severity string) []models.Area {
	var out []models.Area
	for _, a := range c.areas {
		if a.Severity == severity {
			out = append(out, a)
		}
	}
	return out
}

// CriticalPointsByRegion returns the distinct critical points in region, sorted.
func (c *Catalog) CriticalPointsByRegion(region string) []string {
	set := make(map[string]struct{})
	for _, a := range c.areas {
		if a.Region != region {
			continue
		}
		for _, p := range a.CriticalPoints {
			set[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Advice returns the recommendation for the area's risk type, if catalogued.
func Advice(a models.Area) string {
	return RiskTypes[a.RiskType].Recommendation
}

// CriticalNeighborhoodsIn returns the area's neighborhoods that are on the
// critical list.
func CriticalNeighborhoodsIn(a models.Area) []string {
	critical := make(map[string]struct{}, len(CriticalNeighborhoods))
	for _, n := range CriticalNeighborhoods {
		critical[n] = struct{}{}
	}
	var out []string
	for _, n := range a.Neighborhoods {
		if _, ok := critical[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Summary holds catalog-wide totals.
type Summary struct {
	Areas                 int `json:"areas"`
	Neighborhoods         int `json:"neighborhoods"`
	CriticalNeighborhoods int `json:"criticalNeighborhoods"`
	FloodHistory          int `json:"floodHistory"`
	CriticalPoints        int `json:"criticalPoints"`
	HighSeverity          int `json:"highSeverity"`
	MediumSeverity        int `json:"mediumSeverity"`
}

// Summary computes catalog-wide totals.
func (c *Catalog) Summary() Summary {
	neighborhoods := make(map[string]struct{})
	s := Summary{Areas: len(c.areas), CriticalNeighborhoods: len(CriticalNeighborhoods)}
	for _, a := range c.areas {
		for _, n := range a.Neighborhoods {
			neighborhoods[n] = struct{}{}
		}
		s.FloodHistory += a.FloodHistory
		s.CriticalPoints += len(a.CriticalPoints)
	}
	s.Neighborhoods = len(neighborhoods)
	s.HighSeverity = len(c.BySeverity("alta"))
	s.MediumSeverity = len(c.BySeverity("media"))
	return s
}
