package api

import (
	"net/http"
	"strconv"

	"github.com/attendify/pos-event-sync/internal/outbox"
)

// OutboxHandler exposes outgoing message delivery state.
type OutboxHandler struct {
	store *outbox.Store
}

func NewOutboxHandler(store *outbox.Store) *OutboxHandler {
	return &OutboxHandler{store: store}
}

// List handles GET /outbox
func (h *OutboxHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := outbox.Filter{
		Kind:   q.Get("kind"),
		Key:    q.Get("order"),
		Status: outbox.Status(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		f.Offset = n
	}

	msgs, err := h.store.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []*outbox.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}
