package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/metrics"
	"github.com/clinicbook/clinicbook/internal/scheduling"
)

type RouterConfig struct {
	Scheduler *scheduling.Scheduler
	Repo      scheduling.Repository
	JWT       *auth.JWTManager
	Logger    *zap.Logger
	Collector *metrics.Collector
	Location  *time.Location
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

// handlers bundles the dependencies every endpoint needs.
type handlers struct {
	scheduler *scheduling.Scheduler
	repo      scheduling.Repository
	jwt       *auth.JWTManager
	log       *zap.Logger
	loc       *time.Location
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := &handlers{
		scheduler: cfg.Scheduler,
		repo:      cfg.Repo,
		jwt:       cfg.JWT,
		log:       cfg.Logger,
		loc:       cfg.Location,
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Collector))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(300, time.Minute))

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Login endpoints get a tighter rate limit.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(10, time.Minute))
			r.Post("/auth/login", h.login)
			r.Post("/auth/refresh", h.refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWT))

			r.Get("/auth/me", h.me)
			r.Post("/auth/change-password", h.changePassword)

			r.Route("/appointments", func(r chi.Router) {
				r.Get("/", h.listAppointments)
				r.Get("/export", h.exportAppointmentsCSV)
				r.Get("/availability", h.availability)
				r.Get("/check-conflict", h.checkConflict)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(scheduling.RoleClinicAdmin, scheduling.RoleProfessional))
					r.Post("/", h.createAppointment)
					r.Put("/{id}", h.updateAppointment)
					r.Post("/{id}/complete", h.completeAppointment)
					r.Post("/{id}/cancel", h.cancelAppointment)
					r.Post("/{id}/mark-no-show", h.markNoShow)
				})

				r.Get("/{id}", h.getAppointment)
				r.Get("/{id}/whatsapp-link", h.whatsAppLink)

				r.With(RequireRole(scheduling.RoleSuperAdmin, scheduling.RoleClinicAdmin)).
					Delete("/{id}", h.deleteAppointment)
			})

			r.Route("/patients", func(r chi.Router) {
				r.Get("/", h.listPatients)
				r.Get("/{id}", h.getPatient)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(scheduling.RoleClinicAdmin, scheduling.RoleProfessional))
					r.Post("/", h.createPatient)
					r.Put("/{id}", h.updatePatient)
				})
			})

			r.Route("/services", func(r chi.Router) {
				r.Get("/", h.listServices)
				r.Get("/{id}", h.getService)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(scheduling.RoleSuperAdmin, scheduling.RoleClinicAdmin))
					r.Post("/", h.createService)
					r.Put("/{id}", h.updateService)
				})
			})

			r.Route("/professionals", func(r chi.Router) {
				r.Get("/", h.listProfessionals)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(scheduling.RoleSuperAdmin, scheduling.RoleClinicAdmin))
					r.Post("/", h.createUser)
					r.Put("/{id}", h.updateUser)
					r.Post("/{id}/reset-password", h.resetPassword)
					r.Delete("/{id}", h.deleteUser)
				})
			})

			r.Route("/clinics", func(r chi.Router) {
				r.With(RequireRole(scheduling.RoleSuperAdmin)).Get("/", h.listClinics)
				r.With(RequireRole(scheduling.RoleSuperAdmin)).Post("/", h.createClinic)
				r.Get("/{id}", h.getClinic)
				r.With(RequireRole(scheduling.RoleSuperAdmin, scheduling.RoleClinicAdmin)).
					Put("/{id}", h.updateClinic)
			})

			r.Get("/stats", h.stats)
			r.With(RequireRole(scheduling.RoleSuperAdmin, scheduling.RoleClinicAdmin)).
				Get("/reports", h.report)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.listNotifications)
				r.Post("/{id}/read", h.markNotificationRead)
			})
		})
	})

	return r
}
