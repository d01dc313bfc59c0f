package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundledDataset(t *testing.T) {
	ds, err := LoadDataset("data", "")
	require.NoError(t, err)

	assert.Len(t, ds.Distances, 6)
	assert.Len(t, ds.Locations, 6)
	assert.Len(t, ds.Packages, 12)
	assert.Equal(t, []int{2}, ds.Packages[2].TruckRestriction)
}

func TestLoadDatasetNeedsSource(t *testing.T) {
	_, err := LoadDataset("", "")
	assert.Error(t, err)
}
