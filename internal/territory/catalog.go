package territory

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/playperu/territoryrun/internal/geo"
)

var (
	ErrNotFound      = errors.New("territory not found")
	ErrStatusChanged = errors.New("territory changed hands")
)

// Catalog is the in-memory set of territories, shared by every player.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]*Territory
	order []string
}

func NewCatalog(territories []Territory) *Catalog {
	c := &Catalog{items: make(map[string]*Territory)}
	c.Load(territories)
	return c
}

// Load replaces the catalog contents.
func (c *Catalog) Load(territories []Territory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*Territory, len(territories))
	c.order = c.order[:0]
	for i := range territories {
		t := territories[i]
		c.items[t.ID] = &t
		c.order = append(c.order, t.ID)
	}
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// All returns copies of every territory in insertion order.
func (c *Catalog) All() []Territory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Territory, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, clone(*c.items[id]))
	}
	return out
}

func (c *Catalog) Get(id string) (Territory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.items[id]
	if !ok {
		return Territory{}, ErrNotFound
	}
	return clone(*t), nil
}

// Near returns territories whose center lies within radius meters of center,
// closest first.
func (c *Catalog) Near(center geo.Location, radius float64) []Territory {
	type hit struct {
		t Territory
		d float64
	}
	var hits []hit
	for _, t := range c.All() {
		if d := geo.Distance(center, t.Center()); d <= radius {
			hits = append(hits, hit{t, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].d < hits[j].d })

	out := make([]Territory, len(hits))
	for i, h := range hits {
		out[i] = h.t
	}
	return out
}

// Claim flips ownership of a territory to ownerID in place and resets its
// defense to defense. The territory must still have status from as seen by
// ownerID, otherwise ErrStatusChanged. It returns the updated territory.
func (c *Catalog) Claim(id, ownerID string, from Status, defense int, now time.Time) (Territory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.items[id]
	if !ok {
		return Territory{}, ErrNotFound
	}
	if t.For(ownerID).Status != from {
		return Territory{}, ErrStatusChanged
	}
	owner := ownerID
	claimed := now
	t.OwnerID = &owner
	t.ClaimedAt = &claimed
	t.Status = StatusOwned
	t.DefenseStrength = defense
	return clone(*t), nil
}

// Fortify raises defense strength by delta, capped at 100. Only the owner
// can fortify; anyone else gets ErrStatusChanged.
func (c *Catalog) Fortify(id, ownerID string, delta int) (Territory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.items[id]
	if !ok {
		return Territory{}, ErrNotFound
	}
	if t.OwnerID == nil || *t.OwnerID != ownerID {
		return Territory{}, ErrStatusChanged
	}
	t.DefenseStrength = min(100, t.DefenseStrength+delta)
	return clone(*t), nil
}

// ViewFor returns all territories with Status relative to playerID.
func (c *Catalog) ViewFor(playerID string) []Territory {
	all := c.All()
	for i := range all {
		all[i] = all[i].For(playerID)
	}
	return all
}

// OwnedBy counts territories owned by playerID.
func (c *Catalog) OwnedBy(playerID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, t := range c.items {
		if t.OwnerID != nil && *t.OwnerID == playerID {
			n++
		}
	}
	return n
}

func clone(t Territory) Territory {
	t.Polygon = append([]geo.Location(nil), t.Polygon...)
	if t.OwnerID != nil {
		o := *t.OwnerID
		t.OwnerID = &o
	}
	if t.ClaimedAt != nil {
		c := *t.ClaimedAt
		t.ClaimedAt = &c
	}
	return t
}
