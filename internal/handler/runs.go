package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parcel-routing/route-optimizer/backend/internal/config"
	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/loader"
	"github.com/parcel-routing/route-optimizer/backend/internal/runner"
	"github.com/parcel-routing/route-optimizer/backend/internal/utils"
	amqp "github.com/rabbitmq/amqp091-go"
)

type createRunRequest struct {
	Profile     string          `json:"profile"`
	NotifyEmail string          `json:"notifyEmail" validate:"omitempty,email"`
	Parameters  json.RawMessage `json:"parameters"`
}

// resolveParameters layers the request over the named profile over the
// configured defaults.
func (h *Handler) resolveParameters(req *createRunRequest) (domain.RunParameters, error) {
	params := h.config.DefaultRunParameters()

	if req.Profile != "" {
		var err error
		if params, err = h.profiles.Resolve(req.Profile, params); err != nil {
			return domain.RunParameters{}, err
		}
	}

	if len(req.Parameters) > 0 {
		dec := json.NewDecoder(bytes.NewReader(req.Parameters))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&params); err != nil {
			return domain.RunParameters{}, fmt.Errorf("invalid parameters: %w", err)
		}
	}

	return params, nil
}

func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	params, err := h.resolveParameters(&req)
	if err != nil {
		switch {
		case errors.Is(err, config.ErrProfileNotFound):
			h.errorResponse(w, r, "profile not found")
		default:
			h.badRequest(w, r, err)
		}
		return
	}
	if err := h.validate.Struct(params); err != nil {
		h.badRequest(w, r, err)
		return
	}

	packages, err := h.repository.GetAllPackages()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if len(packages) == 0 {
		h.errorResponse(w, r, "no dataset loaded")
		return
	}
	if err := utils.ValidateRunParameters(&params, len(packages)); err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	run := &domain.Run{
		Profile:     req.Profile,
		Parameters:  params,
		NotifyEmail: req.NotifyEmail,
	}
	if err := h.repository.CreateRun(run); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	body, err := json.Marshal(domain.OptimizationMessage{RunID: run.ID})
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if err := h.queueChannel.PublishWithContext(
		ctx,
		"",
		h.config.RabbitMQ.OptimizationQueue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "run queued", run)
}

func (h *Handler) GetAllRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetAllRuns()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "runs fetched", runs)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	h.successResponse(w, r, "run fetched", run)
}

func (h *Handler) GetRunProgress(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	progress, err := runner.LoadProgress(ctx, h.redisClient, run.ID)
	if err != nil {
		switch {
		case errors.Is(err, runner.ErrNoProgress):
			h.errorResponse(w, r, "no progress recorded for this run")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "progress fetched", progress)
}

func (h *Handler) GetBestSolutions(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	records, err := h.repository.GetBestSolutionsByRunID(run.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "best solutions fetched", records)
}

func (h *Handler) ExportBestSolutionsCSV(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	records, err := h.repository.GetBestSolutionsByRunID(run.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeAttachment(w, r, run.ID.String()+"_best_solutions.csv", contentTypeCSV, func(out io.Writer) error {
		return loader.WriteBestSolutionsCSV(out, records)
	})
}

func (h *Handler) ExportBestSolutionsXLSX(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	records, err := h.repository.GetBestSolutionsByRunID(run.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeAttachment(w, r, run.ID.String()+"_best_solutions.xlsx", contentTypeXLSX, func(out io.Writer) error {
		return loader.WriteBestSolutionsXLSX(out, records)
	})
}

// parseAt reads the at query parameter. Without one the end of the day is used.
func parseAt(r *http.Request) (time.Duration, error) {
	at := r.URL.Query().Get("at")
	if at == "" {
		return domain.EndOfDay, nil
	}
	return domain.ParseClock(at)
}

func (h *Handler) replay(w http.ResponseWriter, r *http.Request) (*runner.Snapshot, time.Duration, bool) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	at, err := parseAt(r)
	if err != nil {
		h.errorResponse(w, r, "invalid time, expected HH:MM:SS")
		return nil, 0, false
	}

	if run.Status != domain.RunStatusCompleted || len(run.Routes) == 0 {
		h.errorResponse(w, r, "run has no solution yet")
		return nil, 0, false
	}

	ds, err := h.repository.GetDataset()
	if err != nil {
		h.internalServerError(w, r, err)
		return nil, 0, false
	}

	snap, err := runner.Replay(ds, run.Parameters, run.Routes)
	if err != nil {
		h.errorResponse(w, r, "stored routes do not match the current dataset")
		return nil, 0, false
	}

	return snap, at, true
}

func (h *Handler) GetRunPackages(w http.ResponseWriter, r *http.Request) {
	snap, at, ok := h.replay(w, r)
	if !ok {
		return
	}

	h.successResponse(w, r, "package statuses at "+domain.FormatClock(at), snap.Packages(at))
}

func (h *Handler) GetRunVehicles(w http.ResponseWriter, r *http.Request) {
	snap, at, ok := h.replay(w, r)
	if !ok {
		return
	}

	h.successResponse(w, r, "vehicle statuses at "+domain.FormatClock(at), snap.Vehicles(at))
}
