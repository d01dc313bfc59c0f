package optimizer

import (
	"cmp"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// CostModel prices a simulated genome:
//
//	total_cost = sum(active mileage) + late*LatePenalty + active*VehiclePenalty
//	fitness    = 1 / (total_cost + Epsilon)
//
// A vehicle is active when its route is not empty. A package is late when it
// is delivered at or after its due time. Routes start and end at the hub and
// are never split by a reload stop.
type CostModel struct {
	LatePenalty    float64
	VehiclePenalty float64
	Epsilon        float64
}

func (p *Parameters) costModel() CostModel {
	return CostModel{
		LatePenalty:    p.LatePenalty,
		VehiclePenalty: p.VehiclePenalty,
		Epsilon:        p.Epsilon,
	}
}

// simulate drives every vehicle of g along its route and prices the result.
// Only g and its vehicles are written.
func (cm CostModel) simulate(g *Genome, m Matrices) {
	if g.deliveries == nil {
		g.deliveries = make(map[int]time.Duration, len(g.packageIDs))
	} else {
		clear(g.deliveries)
	}
	g.LatePackages = g.LatePackages[:0]
	g.Mileage = 0
	g.ActiveVehicles = 0

	for _, v := range g.Vehicles {
		v.resetScratch()

		for _, id := range v.Packages {
			pkg, ok := g.store.Get(id)
			if !ok {
				continue
			}

			next := pkg.Address
			v.Mileage += m.Distance[v.Position][next]
			v.Time += m.Time[v.Position][next]
			v.Position = next

			g.deliveries[id] = v.Time
			v.DeliveryLog = append(v.DeliveryLog, Delivery{PackageID: id, Time: v.Time})
			if v.Time >= pkg.TimeDue {
				g.LatePackages = append(g.LatePackages, id)
			}
		}

		if v.Position != Hub {
			v.Mileage += m.Distance[v.Position][Hub]
			v.Time += m.Time[v.Position][Hub]
			v.Position = Hub
		}

		if len(v.Packages) > 0 {
			g.ActiveVehicles++
			g.Mileage += v.Mileage
		}
	}

	g.TotalCost = g.Mileage +
		float64(len(g.LatePackages))*cm.LatePenalty +
		float64(g.ActiveVehicles)*cm.VehiclePenalty
	g.fitness = 1 / (g.TotalCost + cm.Epsilon)
}

// Evaluate simulates every genome on up to workers goroutines, waits for all
// of them, and returns the genomes ranked by descending fitness. Ties keep
// their input order.
func (cm CostModel) Evaluate(population []*Genome, m Matrices, workers int) []*Genome {
	p := pool.New().WithMaxGoroutines(max(1, workers))
	for _, g := range population {
		p.Go(func() {
			cm.simulate(g, m)
		})
	}
	p.Wait()

	ranked := slices.Clone(population)
	slices.SortStableFunc(ranked, func(a, b *Genome) int {
		return cmp.Compare(b.fitness, a.fitness)
	})
	return ranked
}

// ApplyDeliveries writes the departure and delivery times g computed into the
// packages of store. store should be a duplicate of the genome's store.
func ApplyDeliveries(g *Genome, store *Store) {
	for _, id := range store.Keys() {
		if pkg, ok := store.Get(id); ok {
			pkg.ResetDelivery()
		}
	}

	for _, v := range g.Vehicles {
		for _, d := range v.DeliveryLog {
			pkg, ok := store.Get(d.PackageID)
			if !ok {
				continue
			}
			departed := v.DepartureTime
			delivered := d.Time
			pkg.TimeDeparted = &departed
			pkg.TimeDelivered = &delivered
		}
	}
}

// Violations lists packages carried by a vehicle they are restricted from, or
// loaded on a vehicle that leaves before they reach the hub.
func Violations(g *Genome) []Violation {
	var out []Violation
	for _, v := range g.Vehicles {
		for _, id := range v.Packages {
			pkg, ok := g.store.Get(id)
			if !ok {
				continue
			}
			if !pkg.AllowedOn(v.ID) {
				out = append(out, Violation{PackageID: id, VehicleID: v.ID, Reason: "truck_restriction"})
			}
			if v.DepartureTime < pkg.TimeAvailable {
				out = append(out, Violation{PackageID: id, VehicleID: v.ID, Reason: "departs_before_available"})
			}
		}
	}
	return out
}
