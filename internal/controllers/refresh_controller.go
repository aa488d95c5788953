package controllers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"sync"
	"vocarank/internal/providers"
	"vocarank/internal/refresh"
	"vocarank/internal/structures"

	json "github.com/goccy/go-json"
)

const refreshTokenHeader = "X-Refresh-Token"

// RefreshController starts an out-of-schedule views refresh. The endpoint is
// disabled unless refresh.adminToken is configured.
type RefreshController struct {
	refresher refresh.RefresherInterface
	conf      *structures.Config
	logger    providers.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	running   sync.WaitGroup
}

func NewRefreshController(refresher refresh.RefresherInterface, conf *structures.Config, logger providers.Logger) *RefreshController {
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshController{refresher: refresher, conf: conf, logger: logger, ctx: ctx, cancel: cancel}
}

type refreshResponse struct {
	Status string `json:"status"`
}

func (rc *RefreshController) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	token := rc.conf.Refresh.AdminToken
	if token == "" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(refreshTokenHeader)), []byte(token)) != 1 {
		rc.logger.Warnf(providers.TypePost, "Rejected refresh trigger from %s", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status := http.StatusAccepted
	resp := refreshResponse{Status: "started"}
	if rc.refresher.State() == refresh.StateRunning {
		status = http.StatusConflict
		resp.Status = refresh.StateRunning.String()
	} else {
		rc.running.Add(1)
		go rc.run()
	}

	gson, _ := json.Marshal(resp)
	writeJSON(w, status, gson)
}

func (rc *RefreshController) run() {
	defer rc.running.Done()
	summary, err := rc.refresher.RefreshAllViews(rc.ctx, refresh.OptionsFromConfig(rc.conf))
	switch {
	case errors.Is(err, refresh.ErrAlreadyRefreshing), errors.Is(err, refresh.ErrStaleTimestamp):
		rc.logger.Warnf(providers.TypePost, "Triggered refresh skipped: %v", err)
	case err != nil:
		rc.logger.Errorf(providers.TypePost, "Triggered refresh failed: %v", err)
	default:
		rc.logger.Infof(providers.TypePost, "Triggered refresh %s refreshed %d songs", summary.RunID, summary.Refreshed)
	}
}

// Stop cancels triggered refreshes and waits for them to return.
func (rc *RefreshController) Stop() {
	rc.cancel()
	rc.running.Wait()
}
