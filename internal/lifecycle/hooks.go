// Package lifecycle defines the named extension points of the order and
// session lifecycles. Features register callbacks here instead of wrapping
// the base routines.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/attendify/pos-event-sync/internal/models"
)

// Payload is the exported form of an order, keyed by field name.
type Payload map[string]json.RawMessage

// Put marshals v under key.
func (p Payload) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	p[key] = raw
	return nil
}

// Get unmarshals key into v. A missing key leaves v untouched.
func (p Payload) Get(key string, v any) error {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

type (
	CreateHook func(o *models.Order)
	ExportHook func(o *models.Order, p Payload)
	ImportHook func(p Payload, o *models.Order)
	LoadedHook func(ctx context.Context) error
)

// Hooks is an ordered registry of lifecycle callbacks. Callbacks run in
// registration order.
type Hooks struct {
	mu       sync.RWMutex
	onCreate []CreateHook
	onExport []ExportHook
	onImport []ImportHook
	onLoaded []LoadedHook
}

// New returns an empty registry.
func New() *Hooks {
	return &Hooks{}
}

func (h *Hooks) OnCreate(fn CreateHook) {
	h.mu.Lock()
	h.onCreate = append(h.onCreate, fn)
	h.mu.Unlock()
}

func (h *Hooks) OnExport(fn ExportHook) {
	h.mu.Lock()
	h.onExport = append(h.onExport, fn)
	h.mu.Unlock()
}

func (h *Hooks) OnImport(fn ImportHook) {
	h.mu.Lock()
	h.onImport = append(h.onImport, fn)
	h.mu.Unlock()
}

// OnSessionLoaded registers a callback for when the session's server data
// has finished loading.
func (h *Hooks) OnSessionLoaded(fn LoadedHook) {
	h.mu.Lock()
	h.onLoaded = append(h.onLoaded, fn)
	h.mu.Unlock()
}

func (h *Hooks) RunCreate(o *models.Order) {
	for _, fn := range h.snapshotCreate() {
		fn(o)
	}
}

func (h *Hooks) RunExport(o *models.Order, p Payload) {
	h.mu.RLock()
	hooks := append([]ExportHook(nil), h.onExport...)
	h.mu.RUnlock()
	for _, fn := range hooks {
		fn(o, p)
	}
}

func (h *Hooks) RunImport(p Payload, o *models.Order) {
	h.mu.RLock()
	hooks := append([]ImportHook(nil), h.onImport...)
	h.mu.RUnlock()
	for _, fn := range hooks {
		fn(p, o)
	}
}

// RunSessionLoaded runs the loaded callbacks in order and stops at the
// first error.
func (h *Hooks) RunSessionLoaded(ctx context.Context) error {
	h.mu.RLock()
	hooks := append([]LoadedHook(nil), h.onLoaded...)
	h.mu.RUnlock()
	for _, fn := range hooks {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) snapshotCreate() []CreateHook {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]CreateHook(nil), h.onCreate...)
}
