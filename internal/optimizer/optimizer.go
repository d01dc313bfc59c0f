package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

type Optimizer struct {
	params     Parameters
	input      Input
	cost       CostModel
	fleet      []*Vehicle
	packageIDs []int
	rng        *rand.Rand

	skippedSwaps int

	// OnGeneration, when set, is called after each generation is ranked.
	OnGeneration func(GenerationStats)
}

func New(params Parameters, in Input) (*Optimizer, error) {
	if err := validate(&params, &in); err != nil {
		return nil, err
	}

	fleet := make([]*Vehicle, in.TruckCount)
	for i := range fleet {
		departure := DefaultDeparture
		if i < len(in.DepartureTimes) {
			departure = in.DepartureTimes[i]
		}
		fleet[i] = &Vehicle{
			ID:            i + 1,
			Capacity:      in.TruckCapacity,
			Speed:         in.TruckSpeed,
			DepartureTime: departure,
		}
	}

	ids := in.Packages.Keys()
	slices.Sort(ids)

	return &Optimizer{
		params:     params,
		input:      in,
		cost:       params.costModel(),
		fleet:      fleet,
		packageIDs: ids,
		rng:        rand.New(rand.NewSource(params.Seed)),
	}, nil
}

func validate(p *Parameters, in *Input) error {
	switch {
	case p.PopulationSize < 1:
		return errors.New("population size must be positive")
	case p.Generations < 1:
		return errors.New("generations must be positive")
	case p.CrossoverRate < 0 || p.CrossoverRate > 1:
		return errors.New("crossover rate must be within [0, 1]")
	case p.MutationRate < 0 || p.MutationRate > 1:
		return errors.New("mutation rate must be within [0, 1]")
	case in.TruckCount < 1 || in.TruckCapacity < 1:
		return errors.New("fleet must have at least one vehicle with positive capacity")
	case in.TruckSpeed <= 0:
		return errors.New("truck speed must be positive")
	case in.Packages == nil:
		return errors.New("package store is nil")
	}

	if p.Epsilon <= 0 {
		p.Epsilon = DefaultEpsilon
	}
	if p.Workers < 1 {
		p.Workers = 1
	}

	n := len(in.Matrices.Distance)
	if n == 0 || len(in.Matrices.Time) != n {
		return errors.New("distance and time matrices must be non-empty and the same size")
	}
	for i := range n {
		if len(in.Matrices.Distance[i]) != n || len(in.Matrices.Time[i]) != n {
			return fmt.Errorf("matrix row %d is not %d wide", i, n)
		}
	}

	for _, id := range in.Packages.Keys() {
		pkg, _ := in.Packages.Get(id)
		if pkg.Address < 0 || pkg.Address >= n {
			return fmt.Errorf("package %d has address %d outside the %d-location matrix", id, pkg.Address, n)
		}
	}

	if total := in.TruckCount * in.TruckCapacity; total < in.Packages.Len() {
		return fmt.Errorf("%w: fleet capacity %d < %d packages", ErrInfeasible, total, in.Packages.Len())
	}
	return nil
}

func (o *Optimizer) eliteCount() int {
	if o.params.EliteCount > 0 {
		return min(o.params.EliteCount, o.params.PopulationSize)
	}
	return min(max(1, o.params.PopulationSize/eliteDivisor), o.params.PopulationSize)
}

// NewGenome returns an empty genome over this optimizer's fleet.
func (o *Optimizer) NewGenome() *Genome {
	return NewGenome(o.input.Packages, o.fleet)
}

// GenomeFromRoutes rebuilds a genome from routes indexed by vehicle, as
// returned by RoutesByVehicle, and checks it. routes[i] goes on vehicle i+1.
func (o *Optimizer) GenomeFromRoutes(routes [][]int) (*Genome, error) {
	if len(routes) != len(o.fleet) {
		return nil, fmt.Errorf("%w: %d routes for %d vehicles", ErrInvalidSeed, len(routes), len(o.fleet))
	}

	g := o.NewGenome()
	for _, v := range g.Vehicles {
		v.Packages = slices.Clone(routes[v.ID-1])
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	return g, nil
}

// Evaluate simulates g alone against the optimizer's matrices.
func (o *Optimizer) Evaluate(g *Genome) {
	o.cost.simulate(g, o.input.Matrices)
}

func (o *Optimizer) initPopulation(seeds []*Genome) ([]*Genome, error) {
	pop := make([]*Genome, 0, o.params.PopulationSize)

	for _, s := range seeds {
		if len(pop) == o.params.PopulationSize {
			break
		}
		g, err := o.GenomeFromRoutes(s.RoutesByVehicle())
		if err != nil {
			return nil, err
		}
		g.SortGenome()
		pop = append(pop, g)
	}

	for len(pop) < o.params.PopulationSize {
		g := o.NewGenome()
		if err := g.FillRandomly(o.rng); err != nil {
			return nil, err
		}
		if o.params.NearestNeighborInit {
			g.SortRoutesByLocation(o.input.Matrices.Distance)
			g.SortGenome()
		}
		pop = append(pop, g)
	}

	return pop, nil
}

// Optimize runs the generation loop. Seeds, if any, take the first
// population slots. Each improvement of the best cost is appended to the
// returned log and, when sink is not nil, to *sink. ctx is checked between
// generations.
func (o *Optimizer) Optimize(ctx context.Context, seeds []*Genome, sink *[]BestSolution) (*Result, error) {
	pop, err := o.initPopulation(seeds)
	if err != nil {
		return nil, err
	}

	res := &Result{BestCost: math.Inf(1)}
	costs := make([]float64, o.params.PopulationSize)
	elites := o.eliteCount()
	batch := max(2, o.params.PopulationSize/parentDivisor)

	for gen := range o.params.Generations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()

		ranked := o.cost.Evaluate(pop, o.input.Matrices, o.params.Workers)

		top := ranked[0]
		improved := top.TotalCost < res.BestCost
		if improved {
			frozen := top.snapshot()
			entry := BestSolution{
				Generation:     gen,
				Genome:         frozen,
				Cost:           frozen.TotalCost,
				Mileage:        frozen.Mileage,
				LatePackages:   len(frozen.LatePackages),
				ActiveVehicles: frozen.ActiveVehicles,
			}
			res.BestCost = frozen.TotalCost
			res.Best = frozen
			res.Log = append(res.Log, entry)
			if sink != nil {
				*sink = append(*sink, entry)
			}
		}

		if gen < o.params.Generations-1 {
			if pop, err = o.nextGeneration(ranked, elites, batch); err != nil {
				return nil, err
			}
		}

		if o.OnGeneration != nil {
			for i, g := range ranked {
				costs[i] = g.TotalCost
			}
			mean, std := stat.MeanStdDev(costs, nil)
			if math.IsNaN(std) {
				std = 0
			}
			o.OnGeneration(GenerationStats{
				Generation: gen,
				BestCost:   top.TotalCost,
				MeanCost:   mean,
				StdDevCost: std,
				Improved:   improved,
				Elapsed:    time.Since(start),
			})
		}
	}

	res.Violations = Violations(res.Best)
	return res, nil
}

// nextGeneration carries copies of the elites over and fills the rest with
// mutated offspring of tournament winners.
func (o *Optimizer) nextGeneration(ranked []*Genome, elites, batch int) ([]*Genome, error) {
	next := make([]*Genome, 0, o.params.PopulationSize)
	for _, e := range ranked[:elites] {
		next = append(next, e.MakeCopy())
	}

	for len(next) < o.params.PopulationSize {
		parents := o.selectByTournament(ranked, batch)
		offspring, err := o.crossover(parents)
		if err != nil {
			return nil, err
		}
		o.mutate(offspring)
		next = append(next, offspring[:min(len(offspring), o.params.PopulationSize-len(next))]...)
	}
	return next, nil
}

// Run is New followed by Optimize.
func Run(ctx context.Context, in Input, params Parameters, sink *[]BestSolution, seeds []*Genome) (*Result, error) {
	o, err := New(params, in)
	if err != nil {
		return nil, err
	}
	return o.Optimize(ctx, seeds, sink)
}

// SkippedSwaps counts mutations that were rejected by SwapPackages.
func (o *Optimizer) SkippedSwaps() int {
	return o.skippedSwaps
}
