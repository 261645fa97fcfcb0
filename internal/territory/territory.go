// Package territory holds the claimable map polygons, their ownership and the
// containment checks used to detect a runner entering one.
package territory

import (
	"time"

	"github.com/playperu/territoryrun/internal/geo"
)

type Status string

const (
	StatusOwned   Status = "owned"
	StatusEnemy   Status = "enemy"
	StatusNeutral Status = "neutral"
)

type Territory struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Polygon          []geo.Location `json:"polygon"`
	OwnerID          *string        `json:"ownerId"`
	ClaimedAt        *time.Time     `json:"claimedAt"`
	AreaSquareMeters float64        `json:"areaSquareMeters"`
	Status           Status         `json:"status"`
	DefenseStrength  int            `json:"defenseStrength"`
}

// Bounds returns the bounding box of the territory polygon.
func (t Territory) Bounds() geo.Bounds {
	return geo.BoundsOf(t.Polygon)
}

// Center is the mean of the polygon's vertices.
func (t Territory) Center() geo.Location {
	var c geo.Location
	if len(t.Polygon) == 0 {
		return c
	}
	for _, p := range t.Polygon {
		c.Lat += p.Lat
		c.Lng += p.Lng
	}
	n := float64(len(t.Polygon))
	return geo.Location{Lat: c.Lat / n, Lng: c.Lng / n}
}

// For returns a copy with Status relative to playerID.
func (t Territory) For(playerID string) Territory {
	v := t
	v.Polygon = append([]geo.Location(nil), t.Polygon...)
	switch {
	case t.OwnerID == nil:
		v.Status = StatusNeutral
	case *t.OwnerID == playerID:
		v.Status = StatusOwned
	default:
		v.Status = StatusEnemy
	}
	return v
}
