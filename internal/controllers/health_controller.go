package controllers

import (
	"fmt"
	"net/http"
	"time"
	"vocarank/internal/models"
	"vocarank/internal/refresh"
	"vocarank/internal/store"

	json "github.com/goccy/go-json"
)

type HealthController struct {
	refresher refresh.RefresherInterface
	views     store.ViewsStoreInterface
	startTime time.Time
}

type healthResponse struct {
	Status         string  `json:"status"`
	Uptime         string  `json:"uptime"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Refresh        string  `json:"refresh"`
	LatestSnapshot string  `json:"latest_snapshot,omitempty"`
}

// Health reports "degraded" with status 503 when the views store cannot be
// queried.
func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Refresh:       hc.refresher.State().String(),
	}

	status := http.StatusOK
	latest, err := hc.views.MostRecentSnapshot(r.Context(), nil)
	switch {
	case err != nil:
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	case latest != nil:
		resp.LatestSnapshot = models.FormatDay(*latest)
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, status, gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(refresher refresh.RefresherInterface, views store.ViewsStoreInterface) *HealthController {
	return &HealthController{
		refresher: refresher,
		views:     views,
		startTime: time.Now(),
	}
}
