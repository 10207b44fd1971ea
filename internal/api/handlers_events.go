package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/session"
	"github.com/attendify/pos-event-sync/internal/store"
)

// EventHandler serves the candidate set and the local event table.
type EventHandler struct {
	mgr    *session.Manager
	events *store.EventStore
}

func NewEventHandler(mgr *session.Manager, events *store.EventStore) *EventHandler {
	return &EventHandler{mgr: mgr, events: events}
}

// List handles GET /events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeEvents(w, sess.Candidates())
}

// Refresh handles POST /events/refresh
func (h *EventHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	set, err := sess.RefreshCandidates(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeEvents(w, set)
}

type upsertEventRequest struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	ExternalUID   string          `json:"externalUid"`
	ValidFrom     time.Time       `json:"validFrom"`
	ValidUntil    time.Time       `json:"validUntil"`
	Location      string          `json:"location"`
	Description   string          `json:"description"`
	OrganizerName string          `json:"organizerName"`
	OrganizerUID  string          `json:"organizerUid"`
	EntranceFee   decimal.Decimal `json:"entranceFee"`
}

// Upsert handles POST /events. It answers 201 for a new event and 200 for
// an update.
func (h *EventHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	e := models.Event{
		Candidate: models.Candidate{
			ID:          req.ID,
			Name:        req.Name,
			ExternalUID: req.ExternalUID,
			ValidFrom:   req.ValidFrom,
			ValidUntil:  req.ValidUntil,
		},
		EventInfo: models.EventInfo{
			Location:      req.Location,
			Description:   req.Description,
			OrganizerName: req.OrganizerName,
			OrganizerUID:  req.OrganizerUID,
			EntranceFee:   req.EntranceFee,
		},
	}
	op, err := h.events.Upsert(r.Context(), &e)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := http.StatusOK
	if op == models.EventCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, e)
}

// Delete handles DELETE /events/{id}
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	if err := h.events.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeEvents(w http.ResponseWriter, set []models.Candidate) {
	if set == nil {
		set = []models.Candidate{}
	}
	writeJSON(w, http.StatusOK, models.EventsResponse{Events: set, Count: len(set)})
}
