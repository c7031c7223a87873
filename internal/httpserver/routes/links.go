package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hop/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hop/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/hop/internal/httpserver/mw"
)

func init() { Register("links", registerLinks) }

func registerLinks(r chi.Router, d deps.Deps) {
	r.Route("/api/links", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))

		r.Post("/", handlers.CreateLink(d))
		r.Get("/", handlers.ListLinks(d))

		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", handlers.GetLink(d))
			r.Delete("/", handlers.DeleteLink(d))
			r.Post("/disable", handlers.DisableLink(d))
			r.Post("/enable", handlers.EnableLink(d))
			r.Get("/analytics", handlers.LinkAnalytics(d))
		})
	})
}
