package domain

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunParameters are the knobs of one optimization run. Nil penalties and a
// zero seed fall back to the optimizer defaults; an explicit 0 penalty is kept.
type RunParameters struct {
	TruckCount          int      `json:"truckCount" yaml:"truck_count" validate:"min=1,max=100"`
	TruckCapacity       int      `json:"truckCapacity" yaml:"truck_capacity" validate:"min=1"`
	TruckSpeed          float64  `json:"truckSpeed" yaml:"truck_speed" validate:"gt=0"`
	DepartureTimes      []string `json:"departureTimes" yaml:"departure_times" validate:"max=100"`
	PopulationSize      int      `json:"populationSize" yaml:"population_size" validate:"min=1,max=10000"`
	Generations         int      `json:"generations" yaml:"generations" validate:"min=1,max=100000"`
	CrossoverRate       float64  `json:"crossoverRate" yaml:"crossover_rate" validate:"gte=0,lte=1"`
	MutationRate        float64  `json:"mutationRate" yaml:"mutation_rate" validate:"gte=0,lte=1"`
	LatePenalty         *float64 `json:"latePenalty,omitempty" yaml:"late_penalty" validate:"omitempty,gte=0"`
	VehiclePenalty      *float64 `json:"vehiclePenalty,omitempty" yaml:"vehicle_penalty" validate:"omitempty,gte=0"`
	NearestNeighborInit bool     `json:"nearestNeighborInit" yaml:"nearest_neighbor_init"`
	Seed                int64    `json:"seed" yaml:"seed"`
}

// Run is one optimization request and, once finished, its outcome.
type Run struct {
	ID          uuid.UUID     `json:"id"`
	Status      RunStatus     `json:"status"`
	Profile     string        `json:"profile"`
	Parameters  RunParameters `json:"parameters"`
	NotifyEmail string        `json:"notifyEmail"`
	BestCost    *float64      `json:"bestCost"`
	Routes      [][]int       `json:"routes"` // best assignment, one route per vehicle
	Error       string        `json:"error"`
	CreatedAt   time.Time     `json:"createdAt"`
	StartedAt   *time.Time    `json:"startedAt"`
	FinishedAt  *time.Time    `json:"finishedAt"`
	Version     int32         `json:"-"`
}

// BestSolutionRecord is one persisted entry of a run's best-solution log.
type BestSolutionRecord struct {
	RunID          uuid.UUID `json:"runID"`
	Generation     int       `json:"generation"`
	Cost           float64   `json:"cost"`
	Mileage        float64   `json:"mileage"`
	LatePackages   int       `json:"latePackages"`
	ActiveVehicles int       `json:"activeVehicles"`
	Routes         [][]int   `json:"routes"`
}

// RunProgress is the latest generation snapshot of a running optimization.
type RunProgress struct {
	Generation  int       `json:"generation"`
	Generations int       `json:"generations"`
	BestCost    float64   `json:"bestCost"`
	MeanCost    float64   `json:"meanCost"`
	StdDevCost  float64   `json:"stdDevCost"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
