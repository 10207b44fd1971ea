// Package outbox queues outgoing messages and delivers them with retries.
package outbox

import (
	"context"
	"time"
)

// Status is the delivery state of a message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// Message is a unit of outgoing work. Exchange and RoutingKey name where it
// is published; empty values use the publisher defaults.
type Message struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Key         string     `json:"key,omitempty"`
	Exchange    string     `json:"exchange,omitempty"`
	RoutingKey  string     `json:"routing_key,omitempty"`
	ContentType string     `json:"content_type"`
	Body        []byte     `json:"-"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Handler delivers a message. A returned error schedules a retry until
// MaxRetries is reached.
type Handler func(ctx context.Context, m *Message) error

// Filter narrows List.
type Filter struct {
	Kind   string
	Key    string
	Status Status
	Limit  int
	Offset int
}

// Backoff returns the delay before the given retry attempt.
type Backoff func(retry int) time.Duration

// LinearBackoff waits retry * step.
func LinearBackoff(step time.Duration) Backoff {
	return func(retry int) time.Duration { return time.Duration(retry) * step }
}
