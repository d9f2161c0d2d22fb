package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ezlevup/supportdesk/internal/service"
	"github.com/ezlevup/supportdesk/pkg/logger"
)

// NewRouter wires the public customer surface and the token-protected
// admin surface. Each admin route maps 1:1 onto a desk operation.
func NewRouter(desk service.DeskService, users service.UserService, l logger.Logger) *chi.Mux {
	h := NewHTTPHandler(desk, users, l)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(l))

	r.Get("/healthz", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/customers", h.RegisterCustomer)
		r.Post("/auth/operators", h.RegisterOperator)
		r.Post("/auth/login", h.Login)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.OpenSession)
			r.Get("/{sessionId}", h.GetSession)
			r.Post("/{sessionId}/messages", h.PostMessage)
			r.Get("/{sessionId}/messages", h.ListMessages)
		})
	})

	r.Route("/admin/api", func(r chi.Router) {
		r.Use(RequireOperator(users, l))

		r.Get("/waiting-sessions", h.ListWaiting)
		r.Get("/operators/{username}/sessions", h.ListOperatorSessions)
		r.Put("/operators/{username}/status", h.SetOperatorStatus)
		r.Post("/assign", h.Assign)
		r.Post("/process-next", h.ProcessNext)
		r.Post("/sessions/{sessionId}/end", h.EndSession)
	})

	return r
}
