package repository

import (
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		idx INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		street TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS distances (
		origin INTEGER NOT NULL,
		destination INTEGER NOT NULL,
		miles DOUBLE PRECISION NOT NULL CHECK (miles >= 0),
		PRIMARY KEY (origin, destination),
		CHECK (origin <= destination)
	)`,
	`CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY,
		address INTEGER NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		zip TEXT NOT NULL DEFAULT '',
		weight DOUBLE PRECISION NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		due_seconds INTEGER NOT NULL,
		available_seconds INTEGER NOT NULL,
		truck_restriction TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		status TEXT NOT NULL,
		profile TEXT NOT NULL DEFAULT '',
		parameters JSONB NOT NULL,
		notify_email TEXT NOT NULL DEFAULT '',
		best_cost DOUBLE PRECISION,
		routes JSONB,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		version INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS best_solutions (
		run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		generation INTEGER NOT NULL,
		cost DOUBLE PRECISION NOT NULL,
		mileage DOUBLE PRECISION NOT NULL,
		late_packages INTEGER NOT NULL,
		active_vehicles INTEGER NOT NULL,
		routes JSONB NOT NULL,
		PRIMARY KEY (run_id, generation)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
}

// InitSchema creates the tables if they do not exist yet.
func (r *Repository) InitSchema() error {
	ctx, cancel := r.txContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
