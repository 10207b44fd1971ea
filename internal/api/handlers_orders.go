package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/session"
)

// OrderHandler handles the active session's orders. Order bodies use the
// exported order form.
type OrderHandler struct {
	mgr *session.Manager
}

func NewOrderHandler(mgr *session.Manager) *OrderHandler {
	return &OrderHandler{mgr: mgr}
}

// List handles GET /orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	orders := sess.Orders()
	out := make([]models.OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, models.Summarize(o))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	o, err := sess.NewOrder()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeOrder(w, sess, http.StatusCreated, o.UID)
}

// Get handles GET /orders/{uid}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeOrder(w, sess, http.StatusOK, chi.URLParam(r, "uid"))
}

// Tag handles PUT /orders/{uid}/event
func (h *OrderHandler) Tag(w http.ResponseWriter, r *http.Request) {
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
	o, err := sess.TagOrder(chi.URLParam(r, "uid"), req.EventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeOrder(w, sess, http.StatusOK, o.UID)
}

// AddLine handles POST /orders/{uid}/lines
func (h *OrderHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req models.AddLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	o, err := sess.AddLine(chi.URLParam(r, "uid"), models.OrderLine{
		Product:   req.Product,
		Qty:       req.Qty,
		PriceUnit: req.PriceUnit,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeOrder(w, sess, http.StatusOK, o.UID)
}

// Pay handles POST /orders/{uid}/paid
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	o, err := sess.MarkPaid(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Summarize(o))
}

// Import handles POST /orders/import
func (h *OrderHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	sess, err := h.mgr.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	o, err := sess.ImportOrder(data)
	if errors.Is(err, session.ErrSessionEnded) {
		writeDomainError(w, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order: "+err.Error())
		return
	}
	h.writeOrder(w, sess, http.StatusCreated, o.UID)
}

func (h *OrderHandler) writeOrder(w http.ResponseWriter, sess *session.Session, status int, uid string) {
	data, err := sess.ExportOrder(uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
