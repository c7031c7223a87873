package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hop/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hop/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/hop/internal/httpserver/mw"
)

func init() { Register("redirect", registerRedirect) }

func registerRedirect(r chi.Router, d deps.Deps) {
	r.With(mw.EnforceHost(d.AllowedHosts, d.Logger)).Get("/{code}", handlers.Redirect(d))
}
