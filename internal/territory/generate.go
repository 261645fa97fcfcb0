package territory

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/playperu/territoryrun/internal/geo"
)

var namePrefixes = []string{"North", "South", "East", "West", "Old", "New", "Upper", "Lower"}
var nameSuffixes = []string{"Park", "Plaza", "Market", "Harbor", "Hill", "Quarter", "Gardens", "Square"}

const (
	spreadMeters  = 1500.0
	minSideMeters = 100.0
	maxSideMeters = 250.0
)

// Generate builds count demo territories scattered around center. Each is a
// square of 100-250 m per side. Roughly a third are owned by playerID, a
// third by rival players and the rest are unclaimed.
func Generate(rng *rand.Rand, center geo.Location, count int, playerID string, now time.Time) []Territory {
	out := make([]Territory, 0, count)
	for i := range count {
		north := (rng.Float64()*2 - 1) * spreadMeters
		east := (rng.Float64()*2 - 1) * spreadMeters
		side := minSideMeters + rng.Float64()*(maxSideMeters-minSideMeters)

		sw := geo.Offset(center, north, east)
		t := Territory{
			ID:   fmt.Sprintf("territory-%d", i+1),
			Name: namePrefixes[rng.IntN(len(namePrefixes))] + " " + nameSuffixes[rng.IntN(len(nameSuffixes))],
			Polygon: []geo.Location{
				sw,
				geo.Offset(sw, side, 0),
				geo.Offset(sw, side, side),
				geo.Offset(sw, 0, side),
			},
			AreaSquareMeters: side * side,
			DefenseStrength:  rng.IntN(101),
		}

		var owner string
		switch rng.IntN(3) {
		case 0:
			owner = playerID
		case 1:
			owner = fmt.Sprintf("rival-%d", rng.IntN(5)+1)
		}
		if owner != "" {
			claimed := now.Add(-time.Duration(rng.IntN(14*24)) * time.Hour)
			t.OwnerID = &owner
			t.ClaimedAt = &claimed
		}
		out = append(out, t.For(playerID))
	}
	return out
}
