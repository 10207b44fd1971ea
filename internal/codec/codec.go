// Package codec serializes the event tag of an order. Absent tags are
// written as an explicit null and never as 0 or false.
package codec

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/attendify/pos-event-sync/internal/lifecycle"
	"github.com/attendify/pos-event-sync/internal/models"
)

// Field is the payload key carrying the tag.
const Field = "event_id"

var null = json.RawMessage("null")

// Encode returns the order's tag as a JSON integer, or null when unset.
func Encode(o *models.Order) json.RawMessage {
	id, ok := o.EventTag.Get()
	if !ok {
		return null
	}
	return json.RawMessage(strconv.FormatInt(id, 10))
}

// Decode sets the order's tag from raw. It never fails: anything that is
// not a positive integer id becomes no event.
//
// Accepted forms are 42, "42" and the Many2one pair [42, "Expo"]. null,
// false, 0 and missing values mean no event.
func Decode(raw json.RawMessage, o *models.Order) {
	o.EventTag = parse(raw)
}

func parse(raw json.RawMessage) models.EventRef {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return models.NoEvent()
	}

	switch raw[0] {
	case '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) == 0 {
			return models.NoEvent()
		}
		if first := bytes.TrimSpace(pair[0]); len(first) > 0 && first[0] != '[' {
			return parse(first)
		}
		return models.NoEvent()
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return models.NoEvent()
		}
		return fromString(strings.TrimSpace(s))
	default:
		return fromString(string(raw))
	}
}

func fromString(s string) models.EventRef {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return models.NoEvent()
		}
		id = int64(f)
	}
	if id <= 0 {
		return models.NoEvent()
	}
	return models.RefTo(id)
}

// NullInt64 returns the tag in its SQL column form.
func NullInt64(o *models.Order) sql.NullInt64 {
	return RefToNull(o.EventTag)
}

// ScanNullInt64 sets the order's tag from its SQL column form.
func ScanNullInt64(n sql.NullInt64, o *models.Order) {
	o.EventTag = RefFromNull(n)
}

// RefToNull maps a reference to a nullable column; none is NULL.
func RefToNull(r models.EventRef) sql.NullInt64 {
	id, ok := r.Get()
	return sql.NullInt64{Int64: id, Valid: ok}
}

// RefFromNull maps a nullable column to a reference. NULL and
// non-positive ids are none.
func RefFromNull(n sql.NullInt64) models.EventRef {
	if !n.Valid || n.Int64 <= 0 {
		return models.NoEvent()
	}
	return models.RefTo(n.Int64)
}

// Register plugs the codec into the order export and import hooks.
func Register(h *lifecycle.Hooks) {
	h.OnExport(func(o *models.Order, p lifecycle.Payload) {
		p[Field] = Encode(o)
	})
	h.OnImport(func(p lifecycle.Payload, o *models.Order) {
		Decode(p[Field], o)
	})
}
