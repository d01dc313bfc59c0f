package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
)

// ErrRunNotPending is returned when a worker tries to start a run that is
// already running or finished, e.g. after a redelivered queue message.
var ErrRunNotPending = errors.New("run is not pending")

const runColumns = `id, status, profile, parameters, notify_email, best_cost, routes, error, created_at, started_at, finished_at, version`

type runRow struct {
	run        domain.Run
	parameters []byte
	routes     []byte
	bestCost   sql.NullFloat64
	startedAt  sql.NullTime
	finishedAt sql.NullTime
}

func (row *runRow) dst() []any {
	return []any{
		&row.run.ID,
		&row.run.Status,
		&row.run.Profile,
		&row.parameters,
		&row.run.NotifyEmail,
		&row.bestCost,
		&row.routes,
		&row.run.Error,
		&row.run.CreatedAt,
		&row.startedAt,
		&row.finishedAt,
		&row.run.Version,
	}
}

func (row *runRow) decode() (*domain.Run, error) {
	run := row.run
	if err := json.Unmarshal(row.parameters, &run.Parameters); err != nil {
		return nil, err
	}
	if len(row.routes) > 0 {
		if err := json.Unmarshal(row.routes, &run.Routes); err != nil {
			return nil, err
		}
	}
	if row.bestCost.Valid {
		run.BestCost = &row.bestCost.Float64
	}
	if row.startedAt.Valid {
		run.StartedAt = &row.startedAt.Time
	}
	if row.finishedAt.Valid {
		run.FinishedAt = &row.finishedAt.Time
	}
	return &run, nil
}

// CreateRun assigns the id when run has none and stores it as pending.
func (r *Repository) CreateRun(run *domain.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.Status = domain.RunStatusPending

	parameters, err := json.Marshal(run.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (id, status, profile, parameters, notify_email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{run.ID, run.Status, run.Profile, string(parameters), run.NotifyEmail}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.CreatedAt, &run.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetRunByID(id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	var row runRow
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(row.dst()...); err != nil {
		return nil, err
	}

	return row.decode()
}

func (r *Repository) GetAllRuns() ([]*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*domain.Run{}
	for rows.Next() {
		var row runRow
		if err := rows.Scan(row.dst()...); err != nil {
			return nil, err
		}
		run, err := row.decode()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// MarkRunRunning moves a pending run to running. Any other state yields
// ErrRunNotPending.
func (r *Repository) MarkRunRunning(run *domain.Run) error {
	query := `
		UPDATE runs
		SET status = $1, started_at = NOW(), version = version + 1
		WHERE id = $2 AND status = $3
		RETURNING started_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var startedAt time.Time
	err := r.dbpool.QueryRowContext(ctx, query, domain.RunStatusRunning, run.ID, domain.RunStatusPending).Scan(&startedAt, &run.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRunNotPending
		}
		return err
	}

	run.Status = domain.RunStatusRunning
	run.StartedAt = &startedAt
	return nil
}

// CompleteRun stores the best-solution log and the final routes in one
// transaction.
func (r *Repository) CompleteRun(run *domain.Run, log []domain.BestSolutionRecord) error {
	ctx, cancel := r.txContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM best_solutions WHERE run_id = $1`, run.ID); err != nil {
		return err
	}

	for _, rec := range log {
		routes, err := json.Marshal(rec.Routes)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO best_solutions (run_id, generation, cost, mileage, late_packages, active_vehicles, routes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		args := []any{run.ID, rec.Generation, rec.Cost, rec.Mileage, rec.LatePackages, rec.ActiveVehicles, string(routes)}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	routes, err := json.Marshal(run.Routes)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs
		SET status = $1, best_cost = $2, routes = $3, error = '', finished_at = NOW(), version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING finished_at, version
	`

	var finishedAt time.Time
	args := []any{domain.RunStatusCompleted, run.BestCost, string(routes), run.ID, run.Version}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&finishedAt, &run.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	run.Status = domain.RunStatusCompleted
	run.FinishedAt = &finishedAt
	return nil
}

func (r *Repository) FailRun(run *domain.Run, reason string) error {
	query := `
		UPDATE runs
		SET status = $1, error = $2, finished_at = NOW(), version = version + 1
		WHERE id = $3
		RETURNING finished_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var finishedAt time.Time
	if err := r.dbpool.QueryRowContext(ctx, query, domain.RunStatusFailed, reason, run.ID).Scan(&finishedAt, &run.Version); err != nil {
		return err
	}

	run.Status = domain.RunStatusFailed
	run.Error = reason
	run.FinishedAt = &finishedAt
	return nil
}
