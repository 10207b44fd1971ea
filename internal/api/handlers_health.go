package api

import (
	"net/http"

	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/session"
	"github.com/attendify/pos-event-sync/internal/store"
)

type HealthHandler struct {
	db  *store.DB
	mgr *session.Manager
}

func NewHealthHandler(db *store.DB, mgr *session.Manager) *HealthHandler {
	return &HealthHandler{db: db, mgr: mgr}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status: "ok",
	}

	if err := h.db.PingContext(r.Context()); err != nil {
		resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = models.ServiceCheck{Status: "ok"}
	}

	// A missing or bootstrapping session is reported but is not a failure.
	if sess, err := h.mgr.Current(); err != nil {
		resp.Session = models.ServiceCheck{Status: "none"}
	} else if !sess.Ready() {
		resp.Session = models.ServiceCheck{Status: "starting", Message: "waiting for event selection"}
	} else {
		resp.Session = models.ServiceCheck{Status: "ok"}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
