package optimizer

import (
	"errors"
	"time"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/hashchain"
)

var (
	ErrInfeasible  = errors.New("configuration infeasible")
	ErrInvalidSeed = errors.New("invalid seed genome")
)

const (
	Hub = 0

	DefaultDeparture      = 8 * time.Hour
	DefaultLatePenalty    = 20.0
	DefaultVehiclePenalty = 100.0
	// added to the cost before inverting it, keeps fitness finite at cost 0
	DefaultEpsilon = 1.1

	tournamentSize = 5
	parentDivisor  = 2  // pop_size / parentDivisor parents per breeding batch
	eliteDivisor   = 20 // elite_count = max(1, pop_size / eliteDivisor)
)

type Store = hashchain.HashChain[*domain.Package]

type Delivery struct {
	PackageID int           `json:"packageID"`
	Time      time.Duration `json:"time"`
}

// Vehicle is one fleet unit. Packages is the route in delivery order; the
// remaining fields are scratch state rewritten by every evaluation.
type Vehicle struct {
	ID            int           `json:"id"`
	Capacity      int           `json:"capacity"`
	Speed         float64       `json:"speed"`
	DepartureTime time.Duration `json:"departureTime"`
	Packages      []int         `json:"packages"`

	Mileage     float64       `json:"mileage"`
	Time        time.Duration `json:"time"`
	Position    int           `json:"position"`
	DeliveryLog []Delivery    `json:"deliveryLog"`
}

func (v *Vehicle) hasRoom() bool {
	return len(v.Packages) < v.Capacity
}

func (v *Vehicle) resetScratch() {
	v.Mileage = 0
	v.Time = v.DepartureTime
	v.Position = Hub
	v.DeliveryLog = v.DeliveryLog[:0]
}

// Matrices holds the symmetric distance table and the travel times derived
// from it. Address 0 is the hub.
type Matrices struct {
	Distance [][]float64
	Time     [][]time.Duration
}

type Parameters struct {
	PopulationSize int
	Generations    int
	CrossoverRate  float64
	MutationRate   float64
	// EliteCount overrides max(1, PopulationSize/20) when positive.
	EliteCount          int
	LatePenalty         float64
	VehiclePenalty      float64
	Epsilon             float64
	NearestNeighborInit bool
	Workers             int
	Seed                int64
}

func DefaultParameters() Parameters {
	return Parameters{
		PopulationSize:      50,
		Generations:         100,
		CrossoverRate:       0.9,
		MutationRate:        0.2,
		LatePenalty:         DefaultLatePenalty,
		VehiclePenalty:      DefaultVehiclePenalty,
		Epsilon:             DefaultEpsilon,
		NearestNeighborInit: false,
		Workers:             4,
		Seed:                1,
	}
}

// Input is the problem instance: the fleet, the package store and the
// matrices every route is simulated against.
type Input struct {
	TruckCount    int
	TruckCapacity int
	TruckSpeed    float64
	// DepartureTimes[i] is the departure of vehicle i+1. Vehicles without an
	// entry leave at DefaultDeparture.
	DepartureTimes []time.Duration
	Packages       *Store
	Matrices       Matrices
}

// BestSolution is one entry of the best-solution log. Genome is a frozen
// copy and must not be modified.
type BestSolution struct {
	Generation     int     `json:"generation"`
	Genome         *Genome `json:"genome"`
	Cost           float64 `json:"cost"`
	Mileage        float64 `json:"mileage"`
	LatePackages   int     `json:"latePackages"`
	ActiveVehicles int     `json:"activeVehicles"`
}

type GenerationStats struct {
	Generation int
	BestCost   float64
	MeanCost   float64
	StdDevCost float64
	Improved   bool
	Elapsed    time.Duration
}

// Violation flags a package whose assignment breaks a constraint the cost
// model does not price.
type Violation struct {
	PackageID int    `json:"packageID"`
	VehicleID int    `json:"vehicleID"`
	Reason    string `json:"reason"`
}

type Result struct {
	BestCost   float64        `json:"bestCost"`
	Best       *Genome        `json:"best"`
	Log        []BestSolution `json:"log"`
	Violations []Violation    `json:"violations"`
}
