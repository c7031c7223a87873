package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hop/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/shortener"
	"github.com/MrSnakeDoc/hop/internal/utils"
)

// Redirect serves GET /{code}: 302 to the destination, 404 for unknown
// codes, 410 for disabled or expired links, 503 when storage is down.
// Responses are never cacheable so disable and expiry take effect at once.
func Redirect(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		w.Header().Set("Cache-Control", "no-store")

		out, err := d.Service.Redirect(r.Context(), shortener.RedirectRequest{
			Code:      code,
			ClientIP:  utils.ClientIP(r, d.TrustProxy),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			writeDomainError(w, d, err)
			return
		}

		switch out.Kind {
		case shortener.Found:
			http.Redirect(w, r, out.Destination(), http.StatusFound)
		case shortener.Gone:
			d.Logger.Debug("redirect to inactive link",
				logger.String("code", code),
				logger.String("status", string(out.Status)))
			writeError(w, http.StatusGone, "gone", "link is "+string(out.Status))
		default:
			writeError(w, http.StatusNotFound, "not_found", "link not found")
		}
	}
}
