package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Candidate is a selectable event offered by the backend.
type Candidate struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ExternalUID string    `json:"externalUid,omitempty"`
	ValidFrom   time.Time `json:"validFrom"`
	ValidUntil  time.Time `json:"validUntil"`
}

// EventInfo is the descriptive part of an events table row. It travels with
// event change messages and plays no part in choosing an event.
type EventInfo struct {
	Location      string          `json:"location,omitempty"`
	Description   string          `json:"description,omitempty"`
	OrganizerName string          `json:"organizerName,omitempty"`
	OrganizerUID  string          `json:"organizerUid,omitempty"`
	EntranceFee   decimal.Decimal `json:"entranceFee"`
}

// Event is a full events table row.
type Event struct {
	Candidate
	EventInfo
}

// EventOp is a change made to the events table.
type EventOp string

const (
	EventCreated EventOp = "create"
	EventUpdated EventOp = "update"
	EventDeleted EventOp = "delete"
)

// EventRef is an optional reference to a Candidate. The zero value means
// no event.
type EventRef struct {
	ID    int64
	Valid bool
}

// NoEvent returns the empty reference.
func NoEvent() EventRef { return EventRef{} }

// RefTo returns a reference to the candidate with the given id. Ids below
// one are not event ids and give NoEvent.
func RefTo(id int64) EventRef {
	if id <= 0 {
		return NoEvent()
	}
	return EventRef{ID: id, Valid: true}
}

// Get returns the referenced id and whether one is set.
func (r EventRef) Get() (int64, bool) { return r.ID, r.Valid }

// IsNone reports whether no event is referenced.
func (r EventRef) IsNone() bool { return !r.Valid }

func (r EventRef) String() string {
	if !r.Valid {
		return "none"
	}
	return strconv.FormatInt(r.ID, 10)
}

// Selection is the session's active event.
type Selection struct {
	CandidateID EventRef
}

// OrderState tracks where an order is in the register flow.
type OrderState string

const (
	OrderStateDraft OrderState = "draft"
	OrderStatePaid  OrderState = "paid"
)

// OrderLine is a single product line on an order.
type OrderLine struct {
	Product   string          `json:"product"`
	Qty       decimal.Decimal `json:"qty"`
	PriceUnit decimal.Decimal `json:"price_unit"`
}

// Subtotal returns qty * unit price.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Qty.Mul(l.PriceUnit)
}

// Order is a register transaction. EventTag is a copy of the session
// selection taken when the order was created or explicitly re-tagged.
type Order struct {
	UID        string
	Name       string
	SessionID  string
	PartnerRef string
	Lines      []OrderLine
	EventTag   EventRef
	State      OrderState
	CreatedAt  time.Time
	PaidAt     *time.Time
}

// Total sums all line subtotals.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// PosSession is the persisted register session row.
type PosSession struct {
	ID         string
	ConfigName string
	Event      EventRef
	StartedAt  int64
	EndedAt    *int64
}
