package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/hop/internal/logger"
	"github.com/MrSnakeDoc/hop/internal/utils"
)

// AllowOnlyCIDRS guards the ops endpoints. Entries are IPs or CIDRs; an
// unparsable entry is skipped with a warning. An empty list lets everything
// through. The client IP honours X-Forwarded-For only when trustProxy is set.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if skipped := len(allowed) - m.Len(); skipped > 0 {
		log.Warn("ignoring invalid allow-list entries", logger.Int("skipped", skipped))
	}
	if m.IsEmpty() {
		log.Debug("ops allow-list empty, not filtering")
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if m.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}
			log.Debug("ops request rejected",
				logger.String("ip", ip),
				logger.String("path", r.URL.Path))
			w.WriteHeader(http.StatusForbidden)
		})
	}
}
