package seed

import (
	"errors"
	"log/slog"
	"math/rand"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/loader"
	"github.com/parcel-routing/route-optimizer/backend/internal/repository"
	"github.com/parcel-routing/route-optimizer/backend/internal/utils"
)

const DefaultDataDir = "./internal/seed/data"

// LoadDataset reads the workbook when xlsx is set, the CSV directory otherwise.
func LoadDataset(dir, xlsx string) (*domain.Dataset, error) {
	switch {
	case xlsx != "":
		return loader.ReadWorkbook(xlsx)
	case dir != "":
		return loader.ReadDir(dir)
	default:
		return nil, errors.New("either a data directory or a workbook is required")
	}
}

func SeedDataset(r *repository.Repository, ds *domain.Dataset) error {
	if err := r.InitSchema(); err != nil {
		return err
	}
	if err := r.ReplaceDataset(ds); err != nil {
		return err
	}

	slog.Info("dataset loaded", "locations", len(ds.Distances), "packages", len(ds.Packages))
	return nil
}

// SeedRandomDataset replaces the stored dataset with n random packages spread
// over roughly n/2 locations.
func SeedRandomDataset(r *repository.Repository, n, trucks int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	ds := utils.GenerateRandomDataset(rng, n, max(n/2, 2)+1, trucks)
	return SeedDataset(r, ds)
}
