package repository

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
)

// GetBestSolutionsByRunID returns the log of a run in generation order.
func (r *Repository) GetBestSolutionsByRunID(runID uuid.UUID) ([]domain.BestSolutionRecord, error) {
	query := `
		SELECT generation, cost, mileage, late_packages, active_vehicles, routes
		FROM best_solutions
		WHERE run_id = $1
		ORDER BY generation
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.BestSolutionRecord{}
	for rows.Next() {
		rec := domain.BestSolutionRecord{RunID: runID}
		var routes []byte

		dst := []any{&rec.Generation, &rec.Cost, &rec.Mileage, &rec.LatePackages, &rec.ActiveVehicles, &routes}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(routes, &rec.Routes); err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
