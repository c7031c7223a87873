package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hop/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hop/internal/httpserver/handlers"
)

func init() { Register("health", registerHealth) }

// /health stays public so load balancers can reach it.
func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/health", handlers.Health(d))
}
