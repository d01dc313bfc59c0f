package optimizer

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/hashchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timeMatrix(distance [][]float64, speed float64) [][]time.Duration {
	out := make([][]time.Duration, len(distance))
	for i, row := range distance {
		out[i] = make([]time.Duration, len(row))
		for j, d := range row {
			out[i][j] = time.Duration(d / speed * float64(time.Hour))
		}
	}
	return out
}

func newStore(pkgs ...*domain.Package) *Store {
	s := hashchain.New[*domain.Package]()
	for _, p := range pkgs {
		s.Insert(p.ID, p)
	}
	return s
}

func eod(id, address int) *domain.Package {
	return &domain.Package{ID: id, Address: address, TimeDue: domain.EndOfDay, TimeAvailable: domain.DefaultAvailable}
}

// randomInstance builds n packages spread over locations on a random
// symmetric matrix.
func randomInstance(seed int64, locations, n int) (*Store, Matrices) {
	rng := rand.New(rand.NewSource(seed))
	d := make([][]float64, locations)
	for i := range d {
		d[i] = make([]float64, locations)
	}
	for i := 0; i < locations; i++ {
		for j := i + 1; j < locations; j++ {
			v := float64(rng.Intn(90)+10) / 10
			d[i][j], d[j][i] = v, v
		}
	}

	store := hashchain.New[*domain.Package]()
	for id := 1; id <= n; id++ {
		p := eod(id, rng.Intn(locations-1)+1)
		if rng.Intn(4) == 0 {
			p.TimeDue = 9*time.Hour + time.Duration(rng.Intn(120))*time.Minute
		}
		store.Insert(id, p)
	}
	return store, Matrices{Distance: d, Time: timeMatrix(d, 18)}
}

func scenarioA() (Input, Parameters) {
	d := [][]float64{{0, 2, 4}, {2, 0, 3}, {4, 3, 0}}
	in := Input{
		TruckCount:    1,
		TruckCapacity: 2,
		TruckSpeed:    1,
		Packages:      newStore(eod(1, 1), eod(2, 2)),
		Matrices:      Matrices{Distance: d, Time: timeMatrix(d, 1)},
	}
	p := DefaultParameters()
	p.PopulationSize = 4
	p.Generations = 3
	return in, p
}

func TestScenarioA(t *testing.T) {
	in, params := scenarioA()
	o, err := New(params, in)
	require.NoError(t, err)

	g := o.NewGenome()
	require.NoError(t, g.FillRandomly(o.rng))
	o.Evaluate(g)

	assert.InDelta(t, 9.0, g.Mileage, 1e-9)
	assert.Empty(t, g.LatePackages)
	assert.Equal(t, 1, g.ActiveVehicles)
	assert.InDelta(t, 9.0+DefaultVehiclePenalty, g.TotalCost, 1e-9)
	assert.InDelta(t, 1/(g.TotalCost+DefaultEpsilon), g.Fitness(), 1e-12)

	v := g.Vehicles[0]
	assert.Len(t, v.DeliveryLog, 2)
	assert.Equal(t, Hub, v.Position)
	assert.Equal(t, DefaultDeparture+9*time.Hour, v.Time)

	res, err := o.Optimize(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 109.0, res.BestCost, 1e-9)
}

func TestScenarioBOneLatePenalty(t *testing.T) {
	d := [][]float64{{0, 2, 4}, {2, 0, 3}, {4, 3, 0}}
	late := eod(1, 2)
	late.TimeDue = 8*time.Hour + 30*time.Minute // reachable at 12:00 at the earliest

	o, err := New(DefaultParameters(), Input{
		TruckCount:    1,
		TruckCapacity: 1,
		TruckSpeed:    1,
		Packages:      newStore(late),
		Matrices:      Matrices{Distance: d, Time: timeMatrix(d, 1)},
	})
	require.NoError(t, err)

	g := o.NewGenome()
	require.NoError(t, g.DistributePackages())
	o.Evaluate(g)

	assert.Equal(t, []int{1}, g.LatePackages)
	assert.InDelta(t, 8.0+DefaultLatePenalty+DefaultVehiclePenalty, g.TotalCost, 1e-9)

	at, ok := g.DeliveredAt(1)
	require.True(t, ok)
	assert.Equal(t, 12*time.Hour, at)
	assert.Nil(t, late.TimeDelivered, "evaluation must not write to the shared store")
}

func TestScenarioCSelfSwapRelocates(t *testing.T) {
	d := [][]float64{{0, 1}, {1, 0}}
	o, err := New(DefaultParameters(), Input{
		TruckCount:    2,
		TruckCapacity: 2,
		TruckSpeed:    1,
		Packages:      newStore(eod(1, 1), eod(2, 1), eod(3, 1)),
		Matrices:      Matrices{Distance: d, Time: timeMatrix(d, 1)},
	})
	require.NoError(t, err)

	g := o.NewGenome()
	require.NoError(t, g.DistributePackages())
	require.Equal(t, [][]int{{1, 2}, {3}}, g.Assignments())
	last := g.Vehicles[1]

	assert.True(t, g.SwapPackages(1, 1))
	assert.Equal(t, []int{3, 1}, last.Packages)
	assert.Equal(t, [][]int{{3, 1}, {2}}, g.Assignments())
	assert.NoError(t, g.Validate())
}

func TestSwapRejectedWhenLastVehicleFull(t *testing.T) {
	d := [][]float64{{0, 1}, {1, 0}}
	o, err := New(DefaultParameters(), Input{
		TruckCount:    2,
		TruckCapacity: 1,
		TruckSpeed:    1,
		Packages:      newStore(eod(1, 1), eod(2, 1)),
		Matrices:      Matrices{Distance: d, Time: timeMatrix(d, 1)},
	})
	require.NoError(t, err)

	g := o.NewGenome()
	require.NoError(t, g.DistributePackages())
	before := g.Assignments()

	assert.False(t, g.SwapPackages(1, 1))
	assert.False(t, g.SwapPackages(1, 42))
	assert.Equal(t, before, g.Assignments())

	assert.True(t, g.SwapPackages(1, 2))
	assert.Equal(t, [][]int{{1}, {2}}, g.Assignments(), "canonical order after exchange")
}

func TestCanonicalIsPure(t *testing.T) {
	store, m := randomInstance(3, 6, 10)
	o, err := New(DefaultParameters(), Input{TruckCount: 4, TruckCapacity: 4, TruckSpeed: 18, Packages: store, Matrices: m})
	require.NoError(t, err)

	g := o.NewGenome()
	g.Vehicles[0].Packages = []int{9}
	g.Vehicles[1].Packages = []int{}
	g.Vehicles[2].Packages = []int{4, 1, 2}
	g.Vehicles[3].Packages = []int{3, 5, 6, 7}
	before := g.Assignments()

	c := Canonical(g)
	assert.Equal(t, before, g.Assignments())
	assert.Equal(t, [][]int{{3, 5, 6, 7}, {4, 1, 2}, {9}, {}}, c.Assignments())
	assert.Equal(t, 4, c.Vehicles[0].ID)
}

func TestSortRoutesByLocation(t *testing.T) {
	d := [][]float64{
		{0, 1, 2, 3},
		{1, 0, 1, 2},
		{2, 1, 0, 1},
		{3, 2, 1, 0},
	}
	o, err := New(DefaultParameters(), Input{
		TruckCount:    1,
		TruckCapacity: 3,
		TruckSpeed:    1,
		Packages:      newStore(eod(10, 3), eod(11, 1), eod(12, 2)),
		Matrices:      Matrices{Distance: d, Time: timeMatrix(d, 1)},
	})
	require.NoError(t, err)

	g := o.NewGenome()
	g.Vehicles[0].Packages = []int{10, 11, 12}
	g.SortRoutesByLocation(d)
	assert.Equal(t, []int{11, 12, 10}, g.Vehicles[0].Packages)
}

func TestRemoveFromTrucks(t *testing.T) {
	store, m := randomInstance(5, 5, 6)
	o, err := New(DefaultParameters(), Input{TruckCount: 2, TruckCapacity: 3, TruckSpeed: 18, Packages: store, Matrices: m})
	require.NoError(t, err)

	g := o.NewGenome()
	require.NoError(t, g.DistributePackages())
	assert.True(t, g.RemoveFromTrucks(1))
	assert.False(t, g.RemoveFromTrucks(1))
	assert.Equal(t, [][]int{{4, 5, 6}, {2, 3}}, g.Assignments())
}

func TestOperatorsKeepPartitionAndCapacity(t *testing.T) {
	store, m := randomInstance(11, 12, 40)
	params := DefaultParameters()
	params.CrossoverRate = 1
	params.MutationRate = 1
	o, err := New(params, Input{TruckCount: 4, TruckCapacity: 12, TruckSpeed: 18, Packages: store, Matrices: m})
	require.NoError(t, err)

	pop, err := o.initPopulation(nil)
	require.NoError(t, err)
	for _, g := range pop {
		require.NoError(t, g.Validate())
	}

	for round := 0; round < 20; round++ {
		ranked := o.cost.Evaluate(pop, m, 4)
		parents := o.selectByTournament(ranked, len(pop))
		offspring, err := o.crossover(parents)
		require.NoError(t, err)
		for _, g := range offspring {
			require.NoError(t, g.Validate(), "after crossover")
		}
		o.mutate(offspring)
		for _, g := range offspring {
			require.NoError(t, g.Validate(), "after mutation")
		}
		pop = offspring
	}
}

func TestRepairRestoresPartition(t *testing.T) {
	store, m := randomInstance(2, 4, 6)
	o, err := New(DefaultParameters(), Input{TruckCount: 3, TruckCapacity: 2, TruckSpeed: 18, Packages: store, Matrices: m})
	require.NoError(t, err)

	g := o.NewGenome()
	g.Vehicles[0].Packages = []int{1, 2}
	g.Vehicles[1].Packages = []int{2, 3}
	g.Vehicles[2].Packages = []int{1, 4}

	require.NoError(t, repair(g))
	assert.NoError(t, g.Validate())
}

func TestFillRandomlyInfeasible(t *testing.T) {
	store, m := randomInstance(1, 4, 5)
	_, err := New(DefaultParameters(), Input{TruckCount: 2, TruckCapacity: 2, TruckSpeed: 18, Packages: store, Matrices: m})
	assert.ErrorIs(t, err, ErrInfeasible)

	g := NewGenome(store, []*Vehicle{{ID: 1, Capacity: 4}})
	assert.ErrorIs(t, g.FillRandomly(rand.New(rand.NewSource(1))), ErrInfeasible)
}

func TestTournamentPrefersFitter(t *testing.T) {
	store, m := randomInstance(4, 5, 8)
	o, err := New(DefaultParameters(), Input{TruckCount: 2, TruckCapacity: 8, TruckSpeed: 18, Packages: store, Matrices: m})
	require.NoError(t, err)

	ranked := make([]*Genome, 5)
	for i := range ranked {
		ranked[i] = o.NewGenome()
	}
	// tournament of 5 over 5 genomes always sees the best one
	for _, p := range o.selectByTournament(ranked, 20) {
		assert.Same(t, ranked[0], p)
	}
}

func TestEvaluateStableOnTies(t *testing.T) {
	in, params := scenarioA()
	o, err := New(params, in)
	require.NoError(t, err)

	pop := make([]*Genome, 6)
	for i := range pop {
		pop[i] = o.NewGenome()
		pop[i].Vehicles[0].Packages = []int{1, 2}
	}
	ranked := o.cost.Evaluate(pop, in.Matrices, 3)
	for i := range pop {
		assert.Same(t, pop[i], ranked[i])
	}
}

func runCosts(t *testing.T, seed int64, workers int) []float64 {
	t.Helper()
	store, m := randomInstance(42, 15, 40)
	params := DefaultParameters()
	params.PopulationSize = 30
	params.Generations = 25
	params.Seed = seed
	params.Workers = workers

	var sink []BestSolution
	res, err := Run(context.Background(), Input{TruckCount: 3, TruckCapacity: 16, TruckSpeed: 18, Packages: store, Matrices: m}, params, &sink, nil)
	require.NoError(t, err)
	require.Equal(t, len(res.Log), len(sink))

	costs := make([]float64, len(res.Log))
	for i, e := range res.Log {
		costs[i] = e.Cost
	}
	return costs
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	a := runCosts(t, 99, 1)
	b := runCosts(t, 99, 8)
	assert.Equal(t, a, b)
}

func TestBestSolutionLogIsMonotonic(t *testing.T) {
	store, m := randomInstance(8, 15, 40)
	params := DefaultParameters()
	params.PopulationSize = 40
	params.Generations = 40

	var stats []GenerationStats
	o, err := New(params, Input{TruckCount: 3, TruckCapacity: 16, TruckSpeed: 18, Packages: store, Matrices: m})
	require.NoError(t, err)
	o.OnGeneration = func(s GenerationStats) { stats = append(stats, s) }

	res, err := o.Optimize(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Log)
	assert.Len(t, stats, params.Generations)
	assert.Equal(t, 0, res.Log[0].Generation)

	for i := 1; i < len(res.Log); i++ {
		assert.Less(t, res.Log[i].Cost, res.Log[i-1].Cost)
		assert.Greater(t, res.Log[i].Generation, res.Log[i-1].Generation)
	}
	for i := 1; i < len(stats); i++ {
		assert.LessOrEqual(t, stats[i].BestCost, stats[i-1].BestCost)
	}

	for _, e := range res.Log {
		require.NoError(t, e.Genome.Validate())
		assert.Equal(t, e.Cost, e.Genome.TotalCost)
		assert.Equal(t, e.LatePackages, len(e.Genome.LatePackages))
	}
	assert.Equal(t, res.Log[len(res.Log)-1].Cost, res.BestCost)
}

func TestSeedGenomesAreUsed(t *testing.T) {
	store, m := randomInstance(6, 10, 20)
	in := Input{TruckCount: 2, TruckCapacity: 10, TruckSpeed: 18, Packages: store, Matrices: m}
	params := DefaultParameters()
	params.PopulationSize = 10
	params.Generations = 1

	o, err := New(params, in)
	require.NoError(t, err)
	seed := o.NewGenome()
	require.NoError(t, seed.DistributePackages())
	o.Evaluate(seed)

	res, err := o.Optimize(context.Background(), []*Genome{seed}, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.BestCost, seed.TotalCost)

	bad := o.NewGenome()
	bad.Vehicles[0].Packages = []int{1}
	_, err = Run(context.Background(), in, params, nil, []*Genome{bad})
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestOptimizeHonoursCancellation(t *testing.T) {
	in, params := scenarioA()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, in, params, nil, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestViolations(t *testing.T) {
	restricted := eod(1, 1)
	restricted.TruckRestriction = []int{2}
	delayed := eod(2, 1)
	delayed.TimeAvailable = 9*time.Hour + 5*time.Minute

	d := [][]float64{{0, 1}, {1, 0}}
	o, err := New(DefaultParameters(), Input{
		TruckCount:     2,
		TruckCapacity:  2,
		TruckSpeed:     1,
		DepartureTimes: []time.Duration{8 * time.Hour, 10 * time.Hour},
		Packages:       newStore(restricted, delayed),
		Matrices:       Matrices{Distance: d, Time: timeMatrix(d, 1)},
	})
	require.NoError(t, err)

	g, err := o.GenomeFromRoutes([][]int{{1, 2}, {}})
	require.NoError(t, err)

	got := Violations(g)
	assert.ElementsMatch(t, []Violation{
		{PackageID: 1, VehicleID: 1, Reason: "truck_restriction"},
		{PackageID: 2, VehicleID: 1, Reason: "departs_before_available"},
	}, got)

	g, err = o.GenomeFromRoutes([][]int{{}, {1, 2}})
	require.NoError(t, err)
	assert.Empty(t, Violations(g))
}

func TestApplyDeliveriesAndStatus(t *testing.T) {
	in, params := scenarioA()
	o, err := New(params, in)
	require.NoError(t, err)

	g, err := o.GenomeFromRoutes([][]int{{1, 2}})
	require.NoError(t, err)
	o.Evaluate(g)

	view := in.Packages.Duplicate((*domain.Package).Clone)
	ApplyDeliveries(g, view)

	p1, _ := view.Get(1)
	p2, _ := view.Get(2)
	assert.Equal(t, domain.StatusUnavailable, p1.StatusAt(7*time.Hour))
	assert.Equal(t, domain.StatusOutForDelivery, p1.StatusAt(9*time.Hour))
	assert.Equal(t, domain.StatusDelivered, p1.StatusAt(10*time.Hour))
	assert.Equal(t, domain.StatusOutForDelivery, p2.StatusAt(12*time.Hour))
	assert.Equal(t, domain.StatusDelivered, p2.StatusAt(13*time.Hour))

	orig, _ := in.Packages.Get(1)
	assert.Nil(t, orig.TimeDelivered)

	v := g.Vehicles[0]
	st := VehicleStatusAt(v, 7*time.Hour)
	assert.Equal(t, AwaitingDeparture, st.State)
	assert.Equal(t, []int{1, 2}, st.Remaining)

	st = VehicleStatusAt(v, 11*time.Hour)
	assert.Equal(t, EnRoute, st.State)
	assert.Equal(t, []int{1}, st.Delivered)
	assert.InDelta(t, 3.0, st.Mileage, 1e-9)

	st = VehicleStatusAt(v, 15*time.Hour)
	assert.Equal(t, Returning, st.State)

	st = VehicleStatusAt(v, 18*time.Hour)
	assert.Equal(t, AtHubDone, st.State)
	assert.InDelta(t, 9.0, st.Mileage, 1e-9)
	assert.True(t, slices.Equal([]int{1, 2}, st.Delivered))
}

// staggeredFleet has the later-leaving vehicle first, so canonical order
// and vehicle order disagree.
func staggeredFleet(t *testing.T, params Parameters) (*Optimizer, *Genome) {
	t.Helper()
	early := eod(1, 1)
	early.TimeDue = 10 * time.Hour

	d := [][]float64{{0, 1}, {1, 0}}
	o, err := New(params, Input{
		TruckCount:     2,
		TruckCapacity:  2,
		TruckSpeed:     1,
		DepartureTimes: []time.Duration{12 * time.Hour, 8 * time.Hour},
		Packages:       newStore(early, eod(2, 1), eod(3, 1)),
		Matrices:       Matrices{Distance: d, Time: timeMatrix(d, 1)},
	})
	require.NoError(t, err)

	g := o.NewGenome()
	g.Vehicles[0].Packages = []int{3}
	g.Vehicles[1].Packages = []int{1, 2}
	g.SortGenome()
	o.Evaluate(g)
	require.Empty(t, g.LatePackages)
	return o, g
}

func TestGenomeFromRoutesKeepsVehicles(t *testing.T) {
	o, g := staggeredFleet(t, DefaultParameters())
	assert.Equal(t, [][]int{{3}, {1, 2}}, g.RoutesByVehicle())

	rebuilt, err := o.GenomeFromRoutes(g.RoutesByVehicle())
	require.NoError(t, err)
	o.Evaluate(rebuilt)

	assert.InDelta(t, g.TotalCost, rebuilt.TotalCost, 1e-9)
	assert.Empty(t, rebuilt.LatePackages)
	for _, v := range rebuilt.Vehicles {
		if v.ID == 2 {
			assert.Equal(t, 8*time.Hour, v.DepartureTime)
			assert.Equal(t, []int{1, 2}, v.Packages)
		}
	}
}

func TestSeedKeepsItsCost(t *testing.T) {
	params := DefaultParameters()
	params.PopulationSize = 1
	o, seed := staggeredFleet(t, params)

	pop, err := o.initPopulation([]*Genome{seed})
	require.NoError(t, err)
	require.Len(t, pop, 1)
	o.Evaluate(pop[0])
	assert.InDelta(t, seed.TotalCost, pop[0].TotalCost, 1e-9)
}

func TestNearestNeighborInitIsCanonical(t *testing.T) {
	store, m := randomInstance(3, 10, 12)
	params := DefaultParameters()
	params.PopulationSize = 20
	params.NearestNeighborInit = true
	o, err := New(params, Input{TruckCount: 3, TruckCapacity: 4, TruckSpeed: 18, Packages: store, Matrices: m})
	require.NoError(t, err)

	pop, err := o.initPopulation(nil)
	require.NoError(t, err)
	for i, g := range pop {
		assert.Equal(t, Canonical(g).Assignments(), g.Assignments(), "genome %d", i)
	}
}

func TestNextGenerationCopiesElites(t *testing.T) {
	store, m := randomInstance(5, 8, 16)
	params := DefaultParameters()
	params.PopulationSize = 10
	o, err := New(params, Input{TruckCount: 2, TruckCapacity: 8, TruckSpeed: 18, Packages: store, Matrices: m})
	require.NoError(t, err)

	pop, err := o.initPopulation(nil)
	require.NoError(t, err)
	ranked := o.cost.Evaluate(pop, m, 1)

	next, err := o.nextGeneration(ranked, 2, 4)
	require.NoError(t, err)
	require.Len(t, next, 10)
	for i := range 2 {
		assert.NotSame(t, ranked[i], next[i])
		assert.Equal(t, ranked[i].Assignments(), next[i].Assignments())
		for j, v := range next[i].Vehicles {
			assert.NotSame(t, ranked[i].Vehicles[j], v)
		}
	}
}
