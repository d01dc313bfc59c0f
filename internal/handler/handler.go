package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/parcel-routing/route-optimizer/backend/internal/config"
	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/metrics"
	"github.com/parcel-routing/route-optimizer/backend/internal/repository"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type Handler struct {
	validate     *validator.Validate
	config       *config.Config
	profiles     *config.Profiles
	repository   *repository.Repository
	translator   ut.Translator
	queueChannel *amqp.Channel
	redisClient  *redis.Client

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, profiles *config.Profiles, repo *repository.Repository, ch *amqp.Channel, rdb *redis.Client) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:     validate,
		config:       cfg,
		profiles:     profiles,
		repository:   repo,
		translator:   trans,
		queueChannel: ch,
		redisClient:  rdb,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(metrics.Instrument)

	h.Mux.Get("/healthz", h.Healthz)
	h.Mux.Handle("/metrics", metrics.Handler())

	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Get("/packages", h.GetAllPackages)
		r.Get("/locations", h.GetAllLocations)
		r.Get("/profiles", h.GetAllProfiles)

		r.Route("/runs", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleDispatcher})).Post("/", h.CreateRun)
			r.Get("/", h.GetAllRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.runInfo)
				r.Get("/", h.GetRun)
				r.Get("/progress", h.GetRunProgress)
				r.Get("/best-solutions", h.GetBestSolutions)
				r.Get("/best-solutions.csv", h.ExportBestSolutionsCSV)
				r.Get("/best-solutions.xlsx", h.ExportBestSolutionsXLSX)
				r.Get("/packages", h.GetRunPackages)
				r.Get("/vehicles", h.GetRunVehicles)
			})
		})
	})
}
