package repository

import (
	"fmt"
	"time"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/loader"
)

// ReplaceDataset swaps the stored locations, distances and packages for ds.
// Runs are kept; they reference packages by id only.
func (r *Repository) ReplaceDataset(ds *domain.Dataset) error {
	if err := loader.CheckDataset(ds); err != nil {
		return err
	}

	ctx, cancel := r.txContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range []string{"packages", "distances", "locations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	for _, l := range ds.Locations {
		query := `INSERT INTO locations (idx, name, street) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, query, l.Index, l.Name, l.Street); err != nil {
			return err
		}
	}

	// the matrix is symmetric, the upper half is enough
	for i, row := range ds.Distances {
		for j := i; j < len(row); j++ {
			query := `INSERT INTO distances (origin, destination, miles) VALUES ($1, $2, $3)`
			if _, err := tx.ExecContext(ctx, query, i, j, row[j]); err != nil {
				return err
			}
		}
	}

	for _, p := range ds.Packages {
		query := `
			INSERT INTO packages (id, address, city, zip, weight, note, due_seconds, available_seconds, truck_restriction)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`

		args := []any{
			p.ID,
			p.Address,
			p.City,
			p.Zip,
			p.Weight,
			p.Note,
			int64(p.TimeDue / time.Second),
			int64(p.TimeAvailable / time.Second),
			loader.FormatRestriction(p.TruckRestriction),
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAllPackages() ([]*domain.Package, error) {
	query := `
		SELECT id, address, city, zip, weight, note, due_seconds, available_seconds, truck_restriction, version
		FROM packages ORDER BY id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packages := []*domain.Package{}
	for rows.Next() {
		p := &domain.Package{}
		var due, available int64
		var restriction string

		dst := []any{&p.ID, &p.Address, &p.City, &p.Zip, &p.Weight, &p.Note, &due, &available, &restriction, &p.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		p.TimeDue = time.Duration(due) * time.Second
		p.TimeAvailable = time.Duration(available) * time.Second
		if p.TruckRestriction, err = loader.ParseRestriction(restriction); err != nil {
			return nil, fmt.Errorf("package %d: %w", p.ID, err)
		}

		packages = append(packages, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return packages, nil
}

func (r *Repository) GetAllLocations() ([]domain.Location, error) {
	query := `SELECT idx, name, street FROM locations ORDER BY idx`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := []domain.Location{}
	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(&l.Index, &l.Name, &l.Street); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return locations, nil
}

// GetDistances rebuilds the full symmetric matrix from the stored upper half.
func (r *Repository) GetDistances() ([][]float64, error) {
	query := `SELECT origin, destination, miles FROM distances`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type cell struct {
		i, j  int
		miles float64
	}
	var cells []cell
	n := 0
	for rows.Next() {
		var c cell
		if err := rows.Scan(&c.i, &c.j, &c.miles); err != nil {
			return nil, err
		}
		n = max(n, c.j+1)
		cells = append(cells, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for _, c := range cells {
		d[c.i][c.j] = c.miles
		d[c.j][c.i] = c.miles
	}

	return d, nil
}

func (r *Repository) GetDataset() (*domain.Dataset, error) {
	locations, err := r.GetAllLocations()
	if err != nil {
		return nil, err
	}
	distances, err := r.GetDistances()
	if err != nil {
		return nil, err
	}
	packages, err := r.GetAllPackages()
	if err != nil {
		return nil, err
	}

	return &domain.Dataset{
		Locations: locations,
		Distances: distances,
		Packages:  packages,
	}, nil
}
