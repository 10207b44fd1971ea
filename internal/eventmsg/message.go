// Package eventmsg builds the messages announcing changes to the events
// table.
package eventmsg

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/outbox"
)

const (
	// ContentType of an encoded Message.
	ContentType = "application/xml"
	// Kind tags event messages in the outbox.
	Kind = "event"

	schemaInstance = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = "event.xsd"

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var routingKeys = map[models.EventOp]string{
	models.EventCreated: "event.register",
	models.EventUpdated: "event.update",
	models.EventDeleted: "event.delete",
}

// RoutingKey returns the routing key for op, or "" for an unknown op.
func RoutingKey(op models.EventOp) string { return routingKeys[op] }

// RoutingKeys lists the routing keys of all operations.
func RoutingKeys() []string {
	return []string{
		routingKeys[models.EventCreated],
		routingKeys[models.EventUpdated],
		routingKeys[models.EventDeleted],
	}
}

// Message is the <attendify> event document.
type Message struct {
	XMLName        xml.Name `xml:"attendify"`
	XSI            string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:noNamespaceSchemaLocation,attr"`
	Info           Info     `xml:"info"`
	Event          Event    `xml:"event"`
}

type Info struct {
	Sender    string `xml:"sender"`
	Operation string `xml:"operation"`
}

// Event carries dates and times in UTC. Missing values are empty elements.
type Event struct {
	ID            string      `xml:"id"`
	UID           string      `xml:"uid"`
	Title         string      `xml:"title"`
	Location      string      `xml:"location"`
	StartDate     string      `xml:"start_date"`
	EndDate       string      `xml:"end_date"`
	StartTime     string      `xml:"start_time"`
	EndTime       string      `xml:"end_time"`
	OrganizerName string      `xml:"organizer_name"`
	OrganizerUID  string      `xml:"organizer_uid"`
	EntranceFee   string      `xml:"entrance_fee"`
	Description   Description `xml:"description"`
}

// Description is written as CDATA.
type Description struct {
	Text string `xml:",cdata"`
}

// Build maps an events table row to a Message for op.
func Build(op models.EventOp, e *models.Event) Message {
	m := Message{
		XSI:            schemaInstance,
		SchemaLocation: schemaLocation,
		Info:           Info{Sender: "pos", Operation: string(op)},
		Event: Event{
			ID:            fmt.Sprintf("evt_%d", e.ID),
			UID:           e.ExternalUID,
			Title:         e.Name,
			Location:      e.Location,
			OrganizerName: e.OrganizerName,
			OrganizerUID:  e.OrganizerUID,
			EntranceFee:   e.EntranceFee.StringFixed(2),
			Description:   Description{Text: e.Description},
		},
	}
	if !e.ValidFrom.IsZero() {
		m.Event.StartDate = e.ValidFrom.UTC().Format(dateLayout)
		m.Event.StartTime = e.ValidFrom.UTC().Format(timeLayout)
	}
	if !e.ValidUntil.IsZero() {
		m.Event.EndDate = e.ValidUntil.UTC().Format(dateLayout)
		m.Event.EndTime = e.ValidUntil.UTC().Format(timeLayout)
	}
	return m
}

// Encode renders m as an indented XML document.
func Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode event message: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Enqueuer accepts outgoing messages.
type Enqueuer interface {
	Enqueue(ctx context.Context, m *outbox.Message) error
}

// Notifier queues a message on exchange for every change to the events
// table. Failures are logged; the table change stands.
type Notifier struct {
	out      Enqueuer
	exchange string
	log      zerolog.Logger
}

func NewNotifier(out Enqueuer, exchange string, log zerolog.Logger) *Notifier {
	return &Notifier{out: out, exchange: exchange, log: log}
}

// EventChanged builds and queues the message for op on e.
func (n *Notifier) EventChanged(ctx context.Context, op models.EventOp, e *models.Event) {
	key := RoutingKey(op)
	if key == "" {
		n.log.Error().Str("op", string(op)).Int64("event_id", e.ID).Msg("unknown event operation")
		return
	}
	body, err := Encode(Build(op, e))
	if err != nil {
		n.log.Error().Err(err).Int64("event_id", e.ID).Msg("failed to build event message")
		return
	}
	msg := &outbox.Message{
		Kind:        Kind,
		Key:         fmt.Sprintf("evt_%d", e.ID),
		Exchange:    n.exchange,
		RoutingKey:  key,
		ContentType: ContentType,
		Body:        body,
	}
	if err := n.out.Enqueue(ctx, msg); err != nil {
		n.log.Error().Err(err).Int64("event_id", e.ID).Str("op", string(op)).Msg("failed to queue event message")
		return
	}
	n.log.Debug().Int64("event_id", e.ID).Str("routing_key", key).Str("message_id", msg.ID).Msg("event message queued")
}
