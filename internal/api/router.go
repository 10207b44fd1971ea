package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/attendify/pos-event-sync/internal/outbox"
	"github.com/attendify/pos-event-sync/internal/prompt"
	"github.com/attendify/pos-event-sync/internal/session"
	"github.com/attendify/pos-event-sync/internal/store"
)

// BeginFunc starts a new register session. An empty id creates a fresh one.
type BeginFunc func(ctx context.Context, sessionID string) (*session.Session, error)

// NewRouter creates the Chi router with all routes and middleware. events
// and messages may be nil when the local event table or the sale outbox are
// not in use.
func NewRouter(
	db *store.DB,
	mgr *session.Manager,
	prompts *prompt.Deferred,
	begin BeginFunc,
	events *store.EventStore,
	messages *outbox.Store,
	apiKey string,
	log zerolog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID(log))
	r.Use(Logger)
	r.Use(Recovery)

	healthH := NewHealthHandler(db, mgr)
	eventH := NewEventHandler(mgr, events)
	sessionH := NewSessionHandler(mgr, prompts, begin)
	orderH := NewOrderHandler(mgr)

	r.Get("/health", healthH.Health)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventH.List)
			r.Post("/refresh", eventH.Refresh)
			if events != nil {
				r.Post("/", eventH.Upsert)
				r.Delete("/{id}", eventH.Delete)
			}
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionH.Get)
			r.Post("/", sessionH.Begin)
			r.Delete("/", sessionH.End)
			r.Get("/prompt", sessionH.Prompt)
			r.Post("/prompt", sessionH.Answer)
			r.Post("/reselect", sessionH.Reselect)
			r.Put("/event", sessionH.SelectEvent)
			r.Delete("/event", sessionH.ClearEvent)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderH.List)
			r.Post("/", orderH.Create)
			r.Post("/import", orderH.Import)
			r.Get("/{uid}", orderH.Get)
			r.Put("/{uid}/event", orderH.Tag)
			r.Post("/{uid}/lines", orderH.AddLine)
			r.Post("/{uid}/paid", orderH.Pay)
		})

		if messages != nil {
			outboxH := NewOutboxHandler(messages)
			r.Get("/outbox", outboxH.List)
		}
	})

	return r
}
