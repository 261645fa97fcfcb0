package territory

import (
	"fmt"

	"github.com/playperu/territoryrun/internal/geo"
)

type Containment string

const (
	// ContainBounds tests the axis-aligned bounding box of the polygon.
	ContainBounds Containment = "bbox"
	// ContainPolygon runs an exact ray-casting test.
	ContainPolygon Containment = "polygon"
)

func ParseContainment(s string) (Containment, error) {
	switch Containment(s) {
	case ContainBounds, "":
		return ContainBounds, nil
	case ContainPolygon:
		return ContainPolygon, nil
	}
	return "", fmt.Errorf("unknown containment mode %q", s)
}

// Detector decides which territories contain a location.
type Detector struct {
	Mode Containment
}

func (d Detector) contains(t Territory, loc geo.Location) bool {
	if d.Mode == ContainPolygon {
		return geo.InPolygon(loc, t.Polygon)
	}
	return t.Bounds().Contains(loc)
}

// Containing returns the ids of all territories containing loc, in input order.
func (d Detector) Containing(loc geo.Location, territories []Territory) []string {
	var ids []string
	for _, t := range territories {
		if d.contains(t, loc) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// NewlyEntered returns the ids containing loc that are not already in claimed.
func (d Detector) NewlyEntered(loc geo.Location, territories []Territory, claimed []string) []string {
	seen := make(map[string]struct{}, len(claimed))
	for _, id := range claimed {
		seen[id] = struct{}{}
	}
	var ids []string
	for _, id := range d.Containing(loc, territories) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
