// Package api is the thin HTTP delegation layer spec.md explicitly
// scopes out of the core ("HTTP surface for task submission, listing,
// retrieval, cancellation, health, metrics" under Out of scope) but
// SPEC_FULL.md §4.6 adds back as the ambient surface a complete service
// needs. Every handler does validation-or-delegate; no business logic
// lives here.
package api

import (
	"net/http"
	"time"

	"github.com/bobmcallan/mediaqueue/internal/common"
	"github.com/bobmcallan/mediaqueue/internal/dashboard"
	"github.com/bobmcallan/mediaqueue/internal/interfaces"
	"github.com/bobmcallan/mediaqueue/internal/metrics"
	"github.com/bobmcallan/mediaqueue/internal/models"
	"github.com/bobmcallan/mediaqueue/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server holds the collaborators every handler delegates to.
type Server struct {
	Task    *task.Service
	Hub     *dashboard.Hub
	Metrics *metrics.Counters
	Queue   interfaces.QueueStore
	Store   interfaces.DocumentStore
	Logger  *common.Logger
}

// NewRouter builds the chi router for the API surface SPEC_FULL.md §4.6
// lists.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.createTask)
			r.Get("/", s.listTasks)
			r.Get("/{id}", s.getTask)
			r.Delete("/{id}", s.cancelTask)
		})
		r.Get("/health", s.health)
		r.Get("/metrics", s.metrics)
		r.Get("/dashboard/stats", s.dashboardStats)
	})

	r.Get("/ws/dashboard", s.Hub.ServeWS)

	return r
}

func (s *Server) queueDepths(r *http.Request) map[models.TaskType]int64 {
	ctx := r.Context()
	depths := make(map[models.TaskType]int64, 3)
	for _, t := range []models.TaskType{models.TaskTypeVideo, models.TaskTypeAudio, models.TaskTypeImage} {
		n, err := s.Queue.Length(ctx, t)
		if err != nil {
			s.Logger.Warn().Err(err).Str("task_type", string(t)).Msg("Failed to read queue depth")
			continue
		}
		depths[t] = n
	}
	return depths
}
