package api

import (
	"context"
	"net/http"

	"github.com/attendify/pos-event-sync/internal/logger"
	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/prompt"
	"github.com/attendify/pos-event-sync/internal/session"
)

// SessionHandler handles the active register session.
type SessionHandler struct {
	mgr     *session.Manager
	prompts *prompt.Deferred
	begin   BeginFunc
}

func NewSessionHandler(mgr *session.Manager, prompts *prompt.Deferred, begin BeginFunc) *SessionHandler {
	return &SessionHandler{mgr: mgr, prompts: prompts, begin: begin}
}

func describe(sess *session.Session) models.SessionResponse {
	resp := models.SessionResponse{
		SessionID:  sess.ID(),
		ConfigName: sess.ConfigName(),
		Label:      sess.CurrentLabel(),
		Tooltip:    sess.Tooltip(),
		Ready:      sess.Ready(),
	}
	if id, ok := sess.Selection().CandidateID.Get(); ok {
		resp.EventID = &id
	}
	if o, ok := sess.CurrentOrder(); ok {
		resp.OrderUID = o.UID
	}
	return resp
}

// Get handles GET /session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(sess))
}

type beginRequest struct {
	SessionID string `json:"sessionId"`
}

// Begin handles POST /session. The previous session is ended and the new
// one starts bootstrapping in the background.
func (h *SessionHandler) Begin(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	sess, err := h.begin(context.WithoutCancel(r.Context()), req.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, describe(sess))
}

// End handles DELETE /session
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.End(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Prompt handles GET /session/prompt
func (h *SessionHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	set, ok := h.prompts.Pending()
	writeJSON(w, http.StatusOK, models.PromptResponse{Pending: ok, Events: set})
}

// Answer handles POST /session/prompt
func (h *SessionHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req models.PromptAnswer
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Cancelled == (req.EventID != nil) {
		writeError(w, http.StatusBadRequest, "exactly one of eventId or cancelled is required")
		return
	}

	if err := h.prompts.Answer(req.EventID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reselect handles POST /session/reselect. The prompt opens in the
// background and is answered through POST /session/prompt.
func (h *SessionHandler) Reselect(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !sess.Ready() {
		writeDomainError(w, session.ErrNotReady)
		return
	}
	if _, pending := h.prompts.Pending(); pending {
		writeDomainError(w, prompt.ErrBusy)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := sess.RequestReselection(ctx); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("event reselection failed")
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

// SelectEvent handles PUT /session/event
func (h *SessionHandler) SelectEvent(w http.ResponseWriter, r *http.Request) {
	var req models.SelectEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := sess.ChooseEvent(req.EventID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(sess))
}

// ClearEvent handles DELETE /session/event
func (h *SessionHandler) ClearEvent(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := sess.ClearSelection(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(sess))
}
