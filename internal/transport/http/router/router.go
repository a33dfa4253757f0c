package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/baechuer/task-dispatch/internal/transport/http/handlers"
	taskmw "github.com/baechuer/task-dispatch/internal/transport/http/middleware"
)

func New(h *handlers.TasksHandler, z *handlers.HealthHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(taskmw.RequestID)
	r.Use(taskmw.SecurityHeaders)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(taskmw.AccessLog)

	r.Get("/healthz", z.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tasks", h.Create)
		r.Get("/tasks", h.List)
		r.Get("/tasks/{task_id}", h.Get)
		r.Get("/tasks/{task_id}/status", h.Status)
		r.Delete("/tasks/{task_id}", h.Cancel)
	})

	return r
}
