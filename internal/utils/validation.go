package utils

import (
	"fmt"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
)

// ValidateRunParameters checks what the struct tags cannot: departure times
// and whether the fleet can hold every package at all.
func ValidateRunParameters(p *domain.RunParameters, packageCount int) error {
	if len(p.DepartureTimes) > p.TruckCount {
		return fmt.Errorf("%d departure times given for %d trucks", len(p.DepartureTimes), p.TruckCount)
	}

	for i, v := range p.DepartureTimes {
		if _, err := domain.ParseClock(v); err != nil {
			return fmt.Errorf("departure time of truck %d is invalid: %q", i+1, v)
		}
	}

	if capacity := p.TruckCount * p.TruckCapacity; capacity < packageCount {
		return fmt.Errorf("fleet capacity %d is smaller than the %d packages to deliver", capacity, packageCount)
	}

	return nil
}
