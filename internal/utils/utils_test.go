package utils

import (
	"math/rand"
	"testing"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRunParameters(t *testing.T) {
	p := &domain.RunParameters{TruckCount: 2, TruckCapacity: 16, DepartureTimes: []string{"08:00", "9:05 AM"}}
	assert.NoError(t, ValidateRunParameters(p, 32))
	assert.ErrorContains(t, ValidateRunParameters(p, 33), "capacity 32")

	p.DepartureTimes = []string{"08:00", "later"}
	assert.ErrorContains(t, ValidateRunParameters(p, 1), "truck 2")

	p.DepartureTimes = []string{"08:00", "08:00", "08:00"}
	assert.ErrorContains(t, ValidateRunParameters(p, 1), "3 departure times")
}

func TestGenerateRandomDataset(t *testing.T) {
	ds := GenerateRandomDataset(rand.New(rand.NewSource(3)), 40, 12, 3)

	require.NoError(t, loader.CheckDataset(ds))
	assert.Len(t, ds.Packages, 40)
	assert.Len(t, ds.Locations, 12)
	assert.Equal(t, "Hub", ds.Locations[0].Name)

	for _, p := range ds.Packages {
		assert.NotEqual(t, 0, p.Address, "nothing is delivered to the hub")
		assert.GreaterOrEqual(t, p.TimeDue, p.TimeAvailable)
		for _, truck := range p.TruckRestriction {
			assert.LessOrEqual(t, truck, 3)
		}
	}

	again := GenerateRandomDataset(rand.New(rand.NewSource(3)), 40, 12, 3)
	assert.Equal(t, ds.Distances, again.Distances)
}
