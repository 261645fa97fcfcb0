// Package geo holds WGS84 coordinates and the small amount of spherical math
// the game needs: Haversine distance, bounding boxes and polygon containment.
package geo

import "math"

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371000.0

// Location is a WGS84 coordinate in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180 &&
		!math.IsNaN(l.Lat) && !math.IsNaN(l.Lng)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Distance returns the Haversine great-circle distance between a and b in meters.
func Distance(a, b Location) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Offset moves l by the given meters north and east using a local flat-earth
// approximation. Good enough for territory-sized distances.
func Offset(l Location, north, east float64) Location {
	dLat := north / EarthRadius * 180 / math.Pi
	dLng := east / (EarthRadius * math.Cos(toRad(l.Lat))) * 180 / math.Pi
	return Location{Lat: l.Lat + dLat, Lng: l.Lng + dLng}
}

// Bounds is an axis-aligned box in degrees.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

// BoundsOf returns the bounding box of a polygon. An empty polygon yields a
// box that contains nothing.
func BoundsOf(polygon []Location) Bounds {
	if len(polygon) == 0 {
		return Bounds{MinLat: 1, MaxLat: -1, MinLng: 1, MaxLng: -1}
	}
	b := Bounds{
		MinLat: polygon[0].Lat, MaxLat: polygon[0].Lat,
		MinLng: polygon[0].Lng, MaxLng: polygon[0].Lng,
	}
	for _, p := range polygon[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	return b
}

// Contains reports whether l lies inside the box, edges included.
func (b Bounds) Contains(l Location) bool {
	return l.Lat >= b.MinLat && l.Lat <= b.MaxLat &&
		l.Lng >= b.MinLng && l.Lng <= b.MaxLng
}

// InPolygon reports whether l lies inside polygon using ray casting. Points
// exactly on an edge may land either side.
func InPolygon(l Location, polygon []Location) bool {
	inside := false
	n := len(polygon)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := polygon[i], polygon[j]
		if (pi.Lat > l.Lat) != (pj.Lat > l.Lat) &&
			l.Lng < (pj.Lng-pi.Lng)*(l.Lat-pi.Lat)/(pj.Lat-pi.Lat)+pi.Lng {
			inside = !inside
		}
	}
	return inside
}
