package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/hop/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hop/internal/logger"
)

const (
	checkOK    = "ok"
	checkError = "error"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health aggregates dependency checks: "healthy" with 200 when every check
// passes, "degraded" with 503 otherwise. Redis is only checked when
// configured.
func Health(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		checks := map[string]string{"database": checkOK}
		if err := d.Database.Ping(ctx); err != nil {
			d.Logger.Warn("health check failed", logger.String("component", "database"), logger.Error(err))
			checks["database"] = checkError
		}

		if d.Cache != nil {
			checks["redis"] = checkOK
			if err := d.Cache.Ping(ctx); err != nil {
				d.Logger.Warn("health check failed", logger.String("component", "redis"), logger.Error(err))
				checks["redis"] = checkError
			}
		}

		resp := healthResponse{
			Status:    "healthy",
			Version:   d.Version,
			Timestamp: d.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		}
		status := http.StatusOK
		for _, v := range checks {
			if v != checkOK {
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, status, resp)
	}
}
