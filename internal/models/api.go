package models

import "github.com/shopspring/decimal"

// SessionResponse is returned by GET /session.
type SessionResponse struct {
	SessionID  string `json:"sessionId"`
	ConfigName string `json:"configName,omitempty"`
	Label      string `json:"label"`
	Tooltip    string `json:"tooltip"`
	EventID    *int64 `json:"eventId"`
	Ready      bool   `json:"ready"`
	OrderUID   string `json:"currentOrder,omitempty"`
}

// EventsResponse is returned by the event listing endpoints.
type EventsResponse struct {
	Events []Candidate `json:"events"`
	Count  int         `json:"count"`
}

// SelectEventRequest is the payload for PUT /session/event and
// PUT /orders/{uid}/event.
type SelectEventRequest struct {
	EventID int64 `json:"eventId"`
}

// PromptResponse describes a pending initial-selection prompt.
type PromptResponse struct {
	Pending bool        `json:"pending"`
	Events  []Candidate `json:"events,omitempty"`
}

// PromptAnswer resolves a pending prompt: either an event id or cancelled.
type PromptAnswer struct {
	EventID   *int64 `json:"eventId,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// AddLineRequest is the payload for POST /orders/{uid}/lines.
type AddLineRequest struct {
	Product   string          `json:"product"`
	Qty       decimal.Decimal `json:"qty"`
	PriceUnit decimal.Decimal `json:"priceUnit"`
}

// OrderSummary is a compact order view used in listings.
type OrderSummary struct {
	UID     string          `json:"uid"`
	Name    string          `json:"name"`
	State   OrderState      `json:"state"`
	EventID *int64          `json:"eventId"`
	Total   decimal.Decimal `json:"total"`
}

// Summarize builds an OrderSummary for o.
func Summarize(o *Order) OrderSummary {
	s := OrderSummary{UID: o.UID, Name: o.Name, State: o.State, Total: o.Total()}
	if id, ok := o.EventTag.Get(); ok {
		s.EventID = &id
	}
	return s
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string       `json:"status"`
	DB      ServiceCheck `json:"db"`
	Session ServiceCheck `json:"session"`
}

// ServiceCheck is the status of one dependency.
type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
