package optimizer

import (
	"cmp"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"
)

// Genome is one candidate assignment of every package to a vehicle route.
// The package store is shared between genomes and only ever read; evaluation
// results live in the genome itself.
type Genome struct {
	Vehicles []*Vehicle `json:"vehicles"`

	TotalCost      float64 `json:"totalCost"`
	Mileage        float64 `json:"mileage"`
	LatePackages   []int   `json:"latePackages"`
	ActiveVehicles int     `json:"activeVehicles"`

	store      *Store
	packageIDs []int // sorted key set of store
	fitness    float64
	deliveries map[int]time.Duration
}

// NewGenome builds an empty genome over fleet. The vehicles are copied.
func NewGenome(store *Store, fleet []*Vehicle) *Genome {
	ids := store.Keys()
	slices.Sort(ids)

	g := &Genome{
		Vehicles:   make([]*Vehicle, len(fleet)),
		store:      store,
		packageIDs: ids,
	}
	for i, v := range fleet {
		g.Vehicles[i] = &Vehicle{
			ID:            v.ID,
			Capacity:      v.Capacity,
			Speed:         v.Speed,
			DepartureTime: v.DepartureTime,
			Packages:      slices.Clone(v.Packages),
		}
	}
	return g
}

func (g *Genome) Fitness() float64 {
	return g.fitness
}

// DeliveredAt returns the delivery time computed for id by the last
// evaluation.
func (g *Genome) DeliveredAt(id int) (time.Duration, bool) {
	t, ok := g.deliveries[id]
	return t, ok
}

func (g *Genome) totalCapacity() int {
	total := 0
	for _, v := range g.Vehicles {
		total += v.Capacity
	}
	return total
}

func (g *Genome) clearRoutes() {
	for _, v := range g.Vehicles {
		v.Packages = v.Packages[:0]
	}
}

// FillRandomly discards all routes and deals the shuffled package ids to
// random vehicles that still have room.
func (g *Genome) FillRandomly(rng *rand.Rand) error {
	if g.totalCapacity() < len(g.packageIDs) {
		return fmt.Errorf("%w: fleet capacity %d < %d packages", ErrInfeasible, g.totalCapacity(), len(g.packageIDs))
	}

	g.clearRoutes()

	ids := slices.Clone(g.packageIDs)
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	open := make([]int, 0, len(g.Vehicles))
	for _, id := range ids {
		open = open[:0]
		for i, v := range g.Vehicles {
			if v.hasRoom() {
				open = append(open, i)
			}
		}
		if len(open) == 0 {
			return fmt.Errorf("%w: no vehicle has room for package %d", ErrInfeasible, id)
		}

		v := g.Vehicles[open[rng.Intn(len(open))]]
		v.Packages = append(v.Packages, id)
	}

	g.SortGenome()
	return nil
}

// DistributePackages fills vehicles in order, ascending package id, without
// randomness.
func (g *Genome) DistributePackages() error {
	if g.totalCapacity() < len(g.packageIDs) {
		return fmt.Errorf("%w: fleet capacity %d < %d packages", ErrInfeasible, g.totalCapacity(), len(g.packageIDs))
	}

	g.clearRoutes()
	i := 0
	for _, id := range g.packageIDs {
		for !g.Vehicles[i].hasRoom() {
			i++
		}
		g.Vehicles[i].Packages = append(g.Vehicles[i].Packages, id)
	}

	g.SortGenome()
	return nil
}

func firstPackage(v *Vehicle) int {
	if len(v.Packages) == 0 {
		return math.MaxInt
	}
	return v.Packages[0]
}

func compareVehicles(a, b *Vehicle) int {
	if la, lb := len(a.Packages), len(b.Packages); la != lb {
		return lb - la
	}
	return cmp.Compare(firstPackage(a), firstPackage(b))
}

// Canonical returns a copy of g whose vehicles are ordered by descending
// route length, then ascending first package id. g is not modified.
func Canonical(g *Genome) *Genome {
	c := g.MakeCopy()
	slices.SortStableFunc(c.Vehicles, compareVehicles)
	return c
}

// SortGenome puts g into canonical vehicle order in place.
func (g *Genome) SortGenome() {
	slices.SortStableFunc(g.Vehicles, compareVehicles)
}

// SortRoutesByLocation reorders every route nearest-neighbor first, starting
// at the hub.
func (g *Genome) SortRoutesByLocation(distance [][]float64) {
	for _, v := range g.Vehicles {
		if len(v.Packages) < 2 {
			continue
		}

		remaining := slices.Clone(v.Packages)
		route := make([]int, 0, len(remaining))
		pos := Hub

		for len(remaining) > 0 {
			best := 0
			for i := 1; i < len(remaining); i++ {
				if distance[pos][g.address(remaining[i])] < distance[pos][g.address(remaining[best])] {
					best = i
				}
			}
			id := remaining[best]
			route = append(route, id)
			pos = g.address(id)
			remaining = slices.Delete(remaining, best, best+1)
		}

		v.Packages = route
	}
}

func (g *Genome) address(id int) int {
	p, ok := g.store.Get(id)
	if !ok {
		return Hub
	}
	return p.Address
}

// locate returns the vehicle index and route position of id, or -1, -1.
func (g *Genome) locate(id int) (int, int) {
	for vi, v := range g.Vehicles {
		if pi := slices.Index(v.Packages, id); pi >= 0 {
			return vi, pi
		}
	}
	return -1, -1
}

// SwapPackages exchanges the positions of id1 and id2. When both ids are the
// same the package is moved to the end of the last vehicle in canonical
// order. It reports false and leaves g untouched when a package is not
// assigned or the move would overfill a vehicle.
func (g *Genome) SwapPackages(id1, id2 int) bool {
	v1, p1 := g.locate(id1)
	if v1 < 0 {
		return false
	}

	if id1 == id2 {
		last := g.Vehicles[len(g.Vehicles)-1]
		if g.Vehicles[v1] != last && !last.hasRoom() {
			return false
		}
		src := g.Vehicles[v1]
		src.Packages = slices.Delete(src.Packages, p1, p1+1)
		last.Packages = append(last.Packages, id1)
		g.SortGenome()
		return true
	}

	v2, p2 := g.locate(id2)
	if v2 < 0 {
		return false
	}
	a, b := g.Vehicles[v1], g.Vehicles[v2]
	if len(a.Packages) > a.Capacity || len(b.Packages) > b.Capacity {
		return false
	}

	a.Packages[p1], b.Packages[p2] = b.Packages[p2], a.Packages[p1]
	g.SortGenome()
	return true
}

// RemoveFromTrucks deletes id from whichever route holds it.
func (g *Genome) RemoveFromTrucks(id int) bool {
	vi, pi := g.locate(id)
	if vi < 0 {
		return false
	}
	v := g.Vehicles[vi]
	v.Packages = slices.Delete(v.Packages, pi, pi+1)
	g.SortGenome()
	return true
}

// MakeCopy clones the routes. Scratch and derived state start empty; the
// package store is shared.
func (g *Genome) MakeCopy() *Genome {
	c := &Genome{
		Vehicles:   make([]*Vehicle, len(g.Vehicles)),
		store:      g.store,
		packageIDs: g.packageIDs,
	}
	for i, v := range g.Vehicles {
		c.Vehicles[i] = &Vehicle{
			ID:            v.ID,
			Capacity:      v.Capacity,
			Speed:         v.Speed,
			DepartureTime: v.DepartureTime,
			Packages:      slices.Clone(v.Packages),
		}
	}
	return c
}

// snapshot is a full deep copy including evaluation results.
func (g *Genome) snapshot() *Genome {
	c := g.MakeCopy()
	for i, v := range g.Vehicles {
		c.Vehicles[i].Mileage = v.Mileage
		c.Vehicles[i].Time = v.Time
		c.Vehicles[i].Position = v.Position
		c.Vehicles[i].DeliveryLog = slices.Clone(v.DeliveryLog)
	}
	c.TotalCost = g.TotalCost
	c.Mileage = g.Mileage
	c.LatePackages = slices.Clone(g.LatePackages)
	c.ActiveVehicles = g.ActiveVehicles
	c.fitness = g.fitness
	if g.deliveries != nil {
		c.deliveries = make(map[int]time.Duration, len(g.deliveries))
		for k, t := range g.deliveries {
			c.deliveries[k] = t
		}
	}
	return c
}

// RoutesByVehicle returns the routes indexed by vehicle, slot ID-1 holding
// the route of vehicle ID, whatever the current vehicle order.
func (g *Genome) RoutesByVehicle() [][]int {
	routes := make([][]int, len(g.Vehicles))
	for _, v := range g.Vehicles {
		routes[v.ID-1] = append([]int{}, v.Packages...)
	}
	return routes
}

// Assignments returns the routes in the genome's current vehicle order.
func (g *Genome) Assignments() [][]int {
	routes := make([][]int, len(g.Vehicles))
	for i, v := range g.Vehicles {
		routes[i] = append([]int{}, v.Packages...)
	}
	return routes
}

// Validate checks that every stored package is routed exactly once and that
// no vehicle exceeds its capacity.
func (g *Genome) Validate() error {
	seen := make(map[int]int, len(g.packageIDs))
	for _, v := range g.Vehicles {
		if len(v.Packages) > v.Capacity {
			return fmt.Errorf("vehicle %d carries %d packages, capacity %d", v.ID, len(v.Packages), v.Capacity)
		}
		for _, id := range v.Packages {
			if _, ok := g.store.Get(id); !ok {
				return fmt.Errorf("vehicle %d carries unknown package %d", v.ID, id)
			}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("package %d assigned to vehicles %d and %d", id, prev, v.ID)
			}
			seen[id] = v.ID
		}
	}
	if len(seen) != len(g.packageIDs) {
		return fmt.Errorf("%d of %d packages assigned", len(seen), len(g.packageIDs))
	}
	return nil
}
