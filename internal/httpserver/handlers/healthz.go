package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/hop/internal/httpserver/deps"
)

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

type healthzResponse struct {
	Status        string    `json:"status"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	PendingClicks *int      `json:"pending_clicks,omitempty"`
	Build         buildInfo `json:"build"`
}

// Healthz is liveness: it answers as long as the process serves HTTP and
// never probes storage.
func Healthz(d deps.Deps) http.HandlerFunc {
	build := buildInfo{
		Version:   d.Version,
		Commit:    d.Commit,
		BuildDate: d.BuildDate,
		GoVersion: d.GoVersion,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			UptimeSeconds: int64(d.Now().Sub(d.StartTime) / time.Second),
			Build:         build,
		}
		if d.PendingClicks != nil {
			n := d.PendingClicks()
			resp.PendingClicks = &n
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
