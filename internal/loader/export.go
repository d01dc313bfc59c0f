package loader

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
)

var bestSolutionHeader = []string{"index", "generation", "mileage", "late_packages", "trucks_used", "total_cost"}

// WriteBestSolutionsCSV writes one row per log entry, in log order.
func WriteBestSolutionsCSV(w io.Writer, log []domain.BestSolutionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(bestSolutionHeader); err != nil {
		return err
	}

	for i, rec := range log {
		row := []string{
			strconv.Itoa(i),
			strconv.Itoa(rec.Generation),
			strconv.FormatFloat(rec.Mileage, 'f', 1, 64),
			strconv.Itoa(rec.LatePackages),
			strconv.Itoa(rec.ActiveVehicles),
			strconv.FormatFloat(rec.Cost, 'f', 1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
