package runner

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/loader"
	"github.com/parcel-routing/route-optimizer/backend/internal/optimizer"
)

// Outcome is what a finished run hands back to the caller for persistence.
type Outcome struct {
	Result       *optimizer.Result
	Records      []domain.BestSolutionRecord
	SkippedSwaps int
}

// Best is the last log entry, i.e. the best solution of the run.
func (o *Outcome) Best() domain.BestSolutionRecord {
	if len(o.Records) == 0 {
		return domain.BestSolutionRecord{}
	}
	return o.Records[len(o.Records)-1]
}

func ParseDepartures(values []string) ([]time.Duration, error) {
	out := make([]time.Duration, len(values))
	for i, v := range values {
		d, err := domain.ParseClock(v)
		if err != nil {
			return nil, fmt.Errorf("departure time %d: %w", i+1, err)
		}
		out[i] = d
	}
	return out, nil
}

// BuildInput turns a stored dataset into a problem instance. The packages are
// cloned into a fresh store so the dataset stays untouched.
func BuildInput(ds *domain.Dataset, p domain.RunParameters) (optimizer.Input, error) {
	if err := loader.CheckDataset(ds); err != nil {
		return optimizer.Input{}, err
	}

	departures, err := ParseDepartures(p.DepartureTimes)
	if err != nil {
		return optimizer.Input{}, err
	}

	pkgs := make([]*domain.Package, len(ds.Packages))
	for i, pkg := range ds.Packages {
		pkgs[i] = pkg.Clone()
	}

	return optimizer.Input{
		TruckCount:     p.TruckCount,
		TruckCapacity:  p.TruckCapacity,
		TruckSpeed:     p.TruckSpeed,
		DepartureTimes: departures,
		Packages:       loader.NewStore(pkgs),
		Matrices: optimizer.Matrices{
			Distance: ds.Distances,
			Time:     loader.TimeMatrix(ds.Distances, p.TruckSpeed),
		},
	}, nil
}

func BuildParameters(p domain.RunParameters, workers int) optimizer.Parameters {
	params := optimizer.DefaultParameters()
	params.PopulationSize = p.PopulationSize
	params.Generations = p.Generations
	params.CrossoverRate = p.CrossoverRate
	params.MutationRate = p.MutationRate
	params.NearestNeighborInit = p.NearestNeighborInit
	params.Workers = workers
	if p.LatePenalty != nil {
		params.LatePenalty = *p.LatePenalty
	}
	if p.VehiclePenalty != nil {
		params.VehiclePenalty = *p.VehiclePenalty
	}
	if p.Seed != 0 {
		params.Seed = p.Seed
	}
	return params
}

// Execute runs the optimizer for one run. onGeneration may be nil.
func Execute(ctx context.Context, runID uuid.UUID, ds *domain.Dataset, p domain.RunParameters, workers int, onGeneration func(optimizer.GenerationStats)) (*Outcome, error) {
	in, err := BuildInput(ds, p)
	if err != nil {
		return nil, err
	}

	o, err := optimizer.New(BuildParameters(p, workers), in)
	if err != nil {
		return nil, err
	}
	o.OnGeneration = onGeneration

	res, err := o.Optimize(ctx, nil, nil)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Result:       res,
		Records:      Records(runID, res.Log),
		SkippedSwaps: o.SkippedSwaps(),
	}, nil
}

func Records(runID uuid.UUID, log []optimizer.BestSolution) []domain.BestSolutionRecord {
	out := make([]domain.BestSolutionRecord, len(log))
	for i, entry := range log {
		out[i] = domain.BestSolutionRecord{
			RunID:          runID,
			Generation:     entry.Generation,
			Cost:           entry.Cost,
			Mileage:        entry.Mileage,
			LatePackages:   entry.LatePackages,
			ActiveVehicles: entry.ActiveVehicles,
			Routes:         entry.Genome.RoutesByVehicle(),
		}
	}
	return out
}

// PackageView is a package together with its status at the queried time.
type PackageView struct {
	*domain.Package
	VehicleID int                  `json:"vehicleID"`
	Status    domain.PackageStatus `json:"status"`
}

// Snapshot replays stored routes against the dataset, so the status of every
// package and vehicle can be read at any time of day.
type Snapshot struct {
	genome *optimizer.Genome
	store  *optimizer.Store
	owner  map[int]int
}

func Replay(ds *domain.Dataset, p domain.RunParameters, routes [][]int) (*Snapshot, error) {
	in, err := BuildInput(ds, p)
	if err != nil {
		return nil, err
	}

	// population and generations are irrelevant for a replay
	params := BuildParameters(p, 1)
	params.PopulationSize = max(params.PopulationSize, 1)
	params.Generations = max(params.Generations, 1)

	o, err := optimizer.New(params, in)
	if err != nil {
		return nil, err
	}

	g, err := o.GenomeFromRoutes(routes)
	if err != nil {
		return nil, err
	}
	o.Evaluate(g)

	store := in.Packages.Duplicate((*domain.Package).Clone)
	optimizer.ApplyDeliveries(g, store)

	owner := make(map[int]int, store.Len())
	for _, v := range g.Vehicles {
		for _, id := range v.Packages {
			owner[id] = v.ID
		}
	}

	return &Snapshot{genome: g, store: store, owner: owner}, nil
}

func (s *Snapshot) Packages(at time.Duration) []PackageView {
	ids := s.store.Keys()
	slices.Sort(ids)

	out := make([]PackageView, 0, len(ids))
	for _, id := range ids {
		pkg, _ := s.store.Get(id)
		out = append(out, PackageView{
			Package:   pkg,
			VehicleID: s.owner[id],
			Status:    pkg.StatusAt(at),
		})
	}
	return out
}

func (s *Snapshot) Vehicles(at time.Duration) []optimizer.VehicleStatus {
	return optimizer.FleetStatusAt(s.genome, at)
}

func (s *Snapshot) Genome() *optimizer.Genome {
	return s.genome
}
