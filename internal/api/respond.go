package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/attendify/pos-event-sync/internal/binder"
	"github.com/attendify/pos-event-sync/internal/candidates"
	"github.com/attendify/pos-event-sync/internal/prompt"
	"github.com/attendify/pos-event-sync/internal/session"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON body")
	}
	return nil
}

// writeDomainError maps core errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, binder.ErrUnknownCandidate), errors.Is(err, prompt.ErrNotOffered):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, candidates.ErrDataUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, session.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidLine):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, session.ErrSessionEnded),
		errors.Is(err, session.ErrNotReady),
		errors.Is(err, session.ErrOrderPaid),
		errors.Is(err, prompt.ErrNoPrompt),
		errors.Is(err, prompt.ErrBusy):
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}
