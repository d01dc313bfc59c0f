package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/parcel-routing/route-optimizer/backend/internal/config"
	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/metrics"
	"github.com/parcel-routing/route-optimizer/backend/internal/optimizer"
	"github.com/parcel-routing/route-optimizer/backend/internal/repository"
	"github.com/parcel-routing/route-optimizer/backend/internal/runner"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type worker struct {
	cfg    *config.Config
	repo   *repository.Repository
	rdb    *redis.Client
	ch     *amqp.Channel
	logger *slog.Logger
}

// handle processes one queue message. The returned bool asks for a requeue.
func (wk *worker) handle(ctx context.Context, body []byte) (requeue bool) {
	var msg domain.OptimizationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		wk.logger.Error("failed to decode optimization message", "error", err)
		return false
	}
	logger := wk.logger.With("run_id", msg.RunID)

	run, err := wk.repo.GetRunByID(msg.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Warn("run does not exist, dropping message")
			return false
		}
		logger.Error("failed to load run", "error", err)
		return true
	}

	if err := wk.repo.MarkRunRunning(run); err != nil {
		if errors.Is(err, repository.ErrRunNotPending) {
			logger.Warn("run already picked up, dropping message", "status", run.Status)
			return false
		}
		logger.Error("failed to mark run running", "error", err)
		return true
	}

	ds, err := wk.repo.GetDataset()
	if err != nil {
		wk.fail(logger, run, err)
		return false
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(wk.cfg.Optimizer.RunTimeout)*time.Second)
	defer cancel()

	logger.Info("optimization started", "packages", len(ds.Packages), "generations", run.Parameters.Generations, "population", run.Parameters.PopulationSize)
	start := time.Now()

	outcome, err := runner.Execute(runCtx, run.ID, ds, run.Parameters, wk.cfg.Optimizer.Workers, wk.observer(logger, run))
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	metrics.BestCost.DeleteLabelValues(run.ID.String())
	if err != nil {
		wk.fail(logger, run, err)
		return false
	}

	best := outcome.Best()
	run.BestCost = &best.Cost
	run.Routes = best.Routes

	if err := wk.repo.CompleteRun(run, outcome.Records); err != nil {
		wk.fail(logger, run, err)
		return false
	}

	metrics.Runs.WithLabelValues(string(domain.RunStatusCompleted)).Inc()
	metrics.SkippedSwaps.Add(float64(outcome.SkippedSwaps))

	for _, v := range outcome.Result.Violations {
		logger.Warn("constraint not honored by best solution", "package_id", v.PackageID, "vehicle_id", v.VehicleID, "reason", v.Reason)
	}
	logger.Info("optimization completed", "best_cost", best.Cost, "mileage", best.Mileage, "late_packages", best.LatePackages, "improvements", len(outcome.Records), "duration", time.Since(start))

	wk.notify(logger, run, domain.RunCompletedMailData{
		RunID:          run.ID.String(),
		Status:         string(run.Status),
		BestCost:       best.Cost,
		Mileage:        best.Mileage,
		LatePackages:   best.LatePackages,
		ActiveVehicles: best.ActiveVehicles,
	})
	return false
}

func (wk *worker) observer(logger *slog.Logger, run *domain.Run) func(optimizer.GenerationStats) {
	ttl := time.Duration(wk.cfg.Redis.ProgressTTL) * time.Second
	gauge := metrics.BestCost.WithLabelValues(run.ID.String())

	return func(s optimizer.GenerationStats) {
		metrics.Generations.Inc()
		metrics.GenerationDuration.Observe(s.Elapsed.Seconds())
		gauge.Set(s.BestCost)
		if s.Improved {
			metrics.Improvements.Inc()
			logger.Debug("new best solution", "generation", s.Generation, "cost", s.BestCost)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(wk.cfg.Redis.OperationExpiration)*time.Second)
		defer cancel()

		// progress is best effort, the run goes on without redis
		if err := runner.SaveProgress(ctx, wk.rdb, run.ID, runner.NewProgress(s, run.Parameters.Generations), ttl); err != nil {
			logger.Warn("failed to save progress", "generation", s.Generation, "error", err)
		}
	}
}

func (wk *worker) fail(logger *slog.Logger, run *domain.Run, cause error) {
	logger.Error("optimization failed", "error", cause)
	metrics.Runs.WithLabelValues(string(domain.RunStatusFailed)).Inc()

	if err := wk.repo.FailRun(run, cause.Error()); err != nil {
		logger.Error("failed to mark run failed", "error", err)
	}

	wk.notify(logger, run, domain.RunCompletedMailData{
		RunID:  run.ID.String(),
		Status: string(domain.RunStatusFailed),
		Error:  cause.Error(),
	})
}

func (wk *worker) notify(logger *slog.Logger, run *domain.Run, data domain.RunCompletedMailData) {
	if run.NotifyEmail == "" {
		return
	}

	body, err := json.Marshal(domain.MailMessage{
		Type: "run_completed",
		To:   run.NotifyEmail,
		Data: data,
	})
	if err != nil {
		logger.Error("failed to encode mail message", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(wk.cfg.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if err := wk.ch.PublishWithContext(
		ctx,
		"",
		wk.cfg.RabbitMQ.EmailQueue,
		true,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		logger.Error("failed to publish mail message", "error", err)
	}
}
