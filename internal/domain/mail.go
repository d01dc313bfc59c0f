package domain

import "github.com/google/uuid"

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type RunCompletedMailData struct {
	RunID          string  `json:"runID"`
	Status         string  `json:"status"`
	BestCost       float64 `json:"bestCost"`
	Mileage        float64 `json:"mileage"`
	LatePackages   int     `json:"latePackages"`
	ActiveVehicles int     `json:"activeVehicles"`
	Error          string  `json:"error"`
}

// OptimizationMessage is published to the optimization queue when a run is
// created.
type OptimizationMessage struct {
	RunID uuid.UUID `json:"runID"`
}
