// Package orders owns the base order record: construction and its
// exported JSON shape. Extra fields are contributed through lifecycle hooks.
package orders

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/attendify/pos-event-sync/internal/lifecycle"
	"github.com/attendify/pos-event-sync/internal/models"
)

// Factory creates, exports and imports orders for one session.
type Factory struct {
	hooks *lifecycle.Hooks
	seq   atomic.Int64
	now   func() time.Time
}

func NewFactory(hooks *lifecycle.Hooks) *Factory {
	return &Factory{hooks: hooks, now: time.Now}
}

// New builds a draft order and runs the create hooks.
func (f *Factory) New(sessionID string) *models.Order {
	o := &models.Order{
		UID:       uuid.New().String(),
		Name:      fmt.Sprintf("Order %05d", f.seq.Add(1)),
		SessionID: sessionID,
		State:     models.OrderStateDraft,
		CreatedAt: f.now().UTC(),
	}
	f.hooks.RunCreate(o)
	return o
}

// Observe bumps the name sequence past a restored order so new names do
// not collide.
func (f *Factory) Observe(o *models.Order) {
	var n int64
	if _, err := fmt.Sscanf(o.Name, "Order %d", &n); err != nil {
		return
	}
	for {
		cur := f.seq.Load()
		if n <= cur || f.seq.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Export writes the base fields, then runs the export hooks.
func (f *Factory) Export(o *models.Order) ([]byte, error) {
	p := lifecycle.Payload{}
	fields := []struct {
		key string
		val any
	}{
		{"uid", o.UID},
		{"name", o.Name},
		{"session_id", o.SessionID},
		{"partner_ref", o.PartnerRef},
		{"state", o.State},
		{"created_at", o.CreatedAt},
		{"paid_at", o.PaidAt},
		{"lines", linesOrEmpty(o.Lines)},
	}
	for _, fld := range fields {
		if err := p.Put(fld.key, fld.val); err != nil {
			return nil, err
		}
	}

	f.hooks.RunExport(o, p)

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	return data, nil
}

// Import rebuilds an order from its exported form. Create hooks are not
// run; restored orders keep their persisted fields.
func (f *Factory) Import(data []byte) (*models.Order, error) {
	var p lifecycle.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}

	o := &models.Order{}
	if err := p.Get("uid", &o.UID); err != nil {
		return nil, err
	}
	if o.UID == "" {
		return nil, fmt.Errorf("order uid is required")
	}
	for key, dst := range map[string]any{
		"name":        &o.Name,
		"session_id":  &o.SessionID,
		"partner_ref": &o.PartnerRef,
		"state":       &o.State,
		"created_at":  &o.CreatedAt,
		"paid_at":     &o.PaidAt,
		"lines":       &o.Lines,
	} {
		if err := p.Get(key, dst); err != nil {
			return nil, err
		}
	}
	if o.State == "" {
		o.State = models.OrderStateDraft
	}

	f.hooks.RunImport(p, o)
	f.Observe(o)
	return o, nil
}

func linesOrEmpty(lines []models.OrderLine) []models.OrderLine {
	if lines == nil {
		return []models.OrderLine{}
	}
	return lines
}
