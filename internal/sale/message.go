// Package sale builds the sale notification sent when an order is paid.
package sale

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/outbox"
)

const (
	// ContentType of an encoded Message.
	ContentType = "application/xml"
	// Kind tags sale messages in the outbox.
	Kind = "sale.performed"

	schemaInstance = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = "tab_item.xsd"
)

// Message is the <attendify> sale document.
type Message struct {
	XMLName        xml.Name `xml:"attendify"`
	XSI            string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:noNamespaceSchemaLocation,attr"`
	Info           Info     `xml:"info"`
	Tab            Tab      `xml:"tab"`
}

type Info struct {
	Sender    string `xml:"sender"`
	Operation string `xml:"operation"`
}

// Tab is the paid order. UID is the customer reference and EventID the
// external id of the tagged event; both are empty when unknown.
type Tab struct {
	UID       string `xml:"uid"`
	EventID   string `xml:"event_id"`
	Timestamp string `xml:"timestamp"`
	Items     []Item `xml:"items>tab_item"`
}

type Item struct {
	Name     string `xml:"item_name"`
	Quantity string `xml:"quantity"`
	Price    string `xml:"price"`
}

// Build maps a paid order to a Message. event is the tagged candidate, or
// nil when the order has no event or it is no longer known.
func Build(o *models.Order, event *models.Candidate) Message {
	ts := o.CreatedAt
	if o.PaidAt != nil {
		ts = *o.PaidAt
	}

	m := Message{
		XSI:            schemaInstance,
		SchemaLocation: schemaLocation,
		Info:           Info{Sender: "pos", Operation: "create"},
		Tab: Tab{
			UID:       o.PartnerRef,
			Timestamp: ts.UTC().Format(time.RFC3339),
			Items:     make([]Item, 0, len(o.Lines)),
		},
	}
	if event != nil {
		m.Tab.EventID = event.ExternalUID
	}
	for _, l := range o.Lines {
		m.Tab.Items = append(m.Tab.Items, Item{
			Name:     l.Product,
			Quantity: l.Qty.String(),
			Price:    l.PriceUnit.String(),
		})
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
		return nil, fmt.Errorf("encode sale message: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Enqueuer accepts outgoing messages.
type Enqueuer interface {
	Enqueue(ctx context.Context, m *outbox.Message) error
}

// Notifier queues a sale message for every paid order.
type Notifier struct {
	out Enqueuer
	log zerolog.Logger
}

func NewNotifier(out Enqueuer, log zerolog.Logger) *Notifier {
	return &Notifier{out: out, log: log}
}

// OrderPaid builds and queues the sale message for o.
func (n *Notifier) OrderPaid(ctx context.Context, o *models.Order, event *models.Candidate) error {
	body, err := Encode(Build(o, event))
	if err != nil {
		return err
	}
	msg := &outbox.Message{
		Kind:        Kind,
		Key:         o.UID,
		ContentType: ContentType,
		Body:        body,
	}
	if err := n.out.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("queue sale for %s: %w", o.Name, err)
	}
	n.log.Debug().Str("order", o.Name).Str("message_id", msg.ID).Msg("sale message queued")
	return nil
}
