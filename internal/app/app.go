// Package app wires the configured stores, candidate source and outgoing
// messages into session options for the register binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/attendify/pos-event-sync/internal/bootstrap"
	"github.com/attendify/pos-event-sync/internal/broker"
	"github.com/attendify/pos-event-sync/internal/candidates"
	"github.com/attendify/pos-event-sync/internal/config"
	"github.com/attendify/pos-event-sync/internal/eventmsg"
	"github.com/attendify/pos-event-sync/internal/i18n"
	"github.com/attendify/pos-event-sync/internal/odoo"
	"github.com/attendify/pos-event-sync/internal/outbox"
	"github.com/attendify/pos-event-sync/internal/sale"
	"github.com/attendify/pos-event-sync/internal/session"
	"github.com/attendify/pos-event-sync/internal/store"
)

// Services holds everything a register session needs.
type Services struct {
	Config     *config.Config
	DB         *store.DB
	Events     *store.EventStore
	Sessions   *store.SessionStore
	Orders     *store.OrderStore
	Source     candidates.Source
	Messages   *outbox.Store
	Queue      *outbox.Queue
	Notifier   *sale.Notifier
	Translator *i18n.Translator

	publisher *broker.Publisher
	log       zerolog.Logger
}

// Open opens the database, picks the candidate source and starts the sale
// outbox. Without a RabbitMQ URL sale messages are only logged.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Services{
		Config:     cfg,
		DB:         db,
		Events:     store.NewEventStore(db),
		Sessions:   store.NewSessionStore(db),
		Orders:     store.NewOrderStore(db),
		Messages:   outbox.NewStore(),
		Translator: i18n.New(cfg.Language),
		log:        log,
	}

	switch cfg.CandidateSource {
	case config.SourceOdoo:
		s.Source = odoo.NewClient(cfg.OdooURL, cfg.OdooDB, cfg.OdooUser, cfg.OdooPassword, cfg.OdooTimeout)
	default:
		s.Source = s.Events
	}

	s.Queue = outbox.NewQueue(cfg.OutboxBuffer, s.Messages,
		outbox.WithWorkers(cfg.OutboxWorkers),
		outbox.WithMaxRetries(cfg.OutboxRetries),
		outbox.WithLogger(log),
	)
	s.Notifier = sale.NewNotifier(s.Queue, log)
	s.Events.SetObserver(eventmsg.NewNotifier(s.Queue, cfg.EventExchange, log))

	handler := s.logMessage
	if cfg.RabbitMQURL != "" {
		pub, err := broker.Dial(cfg.RabbitMQURL, cfg.SaleExchange, cfg.SaleRoutingKey, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect sale broker: %w", err)
		}
		if err := pub.Bind(cfg.EventQueue, cfg.EventExchange, eventmsg.RoutingKeys()...); err != nil {
			pub.Close()
			db.Close()
			return nil, fmt.Errorf("bind event queue: %w", err)
		}
		s.publisher = pub
		handler = pub.Handle
	} else {
		log.Warn().Msg("RABBITMQ_URL not set, outgoing messages are logged only")
	}

	if err := s.Queue.Start(ctx, handler); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("start sale outbox: %w", err)
	}

	log.Info().
		Str("db", cfg.DBPath).
		Str("candidates", cfg.CandidateSource).
		Bool("broker", s.publisher != nil).
		Msg("services ready")
	return s, nil
}

func (s *Services) logMessage(ctx context.Context, m *outbox.Message) error {
	s.log.Info().
		Str("message_id", m.ID).
		Str("kind", m.Kind).
		Str("key", m.Key).
		Str("routing_key", m.RoutingKey).
		Int("bytes", len(m.Body)).
		Msg("outgoing message (no broker)")
	s.log.Debug().Str("message_id", m.ID).Msg(string(m.Body))
	return nil
}

// SessionOptions builds the options for a session with the given id.
func (s *Services) SessionOptions(sessionID string, prompter bootstrap.Prompter) session.Options {
	return session.Options{
		SessionID:  sessionID,
		ConfigName: s.Config.ConfigName,
		Source:     s.Source,
		Limit:      s.Config.CandidateLimit,
		Prompter:   prompter,
		Sessions:   s.Sessions,
		Orders:     s.Orders,
		Notifier:   s.Notifier,
		Translator: s.Translator,
		Logger:     s.log,
	}
}

// Close drains the outbox, then closes the broker and the database.
func (s *Services) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.Queue.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Msg("sale outbox did not drain")
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.log.Warn().Err(err).Msg("failed to close sale broker")
		}
	}
	return s.DB.Close()
}
