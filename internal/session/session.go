// Package session composes the per-register event selection: candidates,
// selection, bootstrap, binder and order persistence live and die together
// with a Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/attendify/pos-event-sync/internal/binder"
	"github.com/attendify/pos-event-sync/internal/bootstrap"
	"github.com/attendify/pos-event-sync/internal/candidates"
	"github.com/attendify/pos-event-sync/internal/codec"
	"github.com/attendify/pos-event-sync/internal/i18n"
	"github.com/attendify/pos-event-sync/internal/lifecycle"
	"github.com/attendify/pos-event-sync/internal/models"
	"github.com/attendify/pos-event-sync/internal/orders"
	"github.com/attendify/pos-event-sync/internal/selection"
	"github.com/attendify/pos-event-sync/internal/store"
)

var (
	ErrNoSession     = errors.New("no active session")
	ErrSessionEnded  = errors.New("session has ended")
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderPaid     = errors.New("order is already paid")
	ErrInvalidLine   = errors.New("invalid order line")
	// ErrNotReady is returned by selection changes while the bootstrap is
	// still running.
	ErrNotReady = errors.New("session is still choosing its event")
)

// PaidNotifier is told about every paid order.
type PaidNotifier interface {
	OrderPaid(ctx context.Context, o *models.Order, event *models.Candidate) error
}

// Options configures a Session. Source and Prompter are required; the
// stores and notifier are optional.
type Options struct {
	SessionID  string
	ConfigName string
	Source     candidates.Source
	Limit      int
	Prompter   bootstrap.Prompter
	Sessions   *store.SessionStore
	Orders     *store.OrderStore
	Notifier   PaidNotifier
	Translator *i18n.Translator
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Session is one register session.
type Session struct {
	id         string
	configName string

	cands    *candidates.Store
	sel      *selection.State
	binder   *binder.Binder
	hooks    *lifecycle.Hooks
	factory  *orders.Factory
	prompter bootstrap.Prompter

	sessions *store.SessionStore
	orders   *store.OrderStore
	notifier PaidNotifier
	tr       *i18n.Translator
	log      zerolog.Logger
	now      func() time.Time

	startOnce sync.Once
	startErr  error

	// ctx is cancelled by End and bounds every prompt the session opens.
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	bootMu  sync.Mutex
	machine *bootstrap.Machine
	result  *bootstrap.Result

	mu      sync.RWMutex
	list    []*models.Order
	byUID   map[string]*models.Order
	current string
	ended   bool
}

// New builds a session, restores its persisted selection and unpaid orders
// and prepares the bootstrap. Nothing is prompted until Start.
func New(opts Options) (*Session, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("candidate source is required")
	}
	if opts.Prompter == nil {
		return nil, fmt.Errorf("prompter is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Translator == nil {
		opts.Translator = i18n.New("")
	}

	s := &Session{
		id:         opts.SessionID,
		configName: opts.ConfigName,
		cands:      candidates.NewStore(opts.Source, opts.Limit),
		sel:        selection.New(),
		hooks:      lifecycle.New(),
		prompter:   opts.Prompter,
		sessions:   opts.Sessions,
		orders:     opts.Orders,
		notifier:   opts.Notifier,
		tr:         opts.Translator,
		now:        opts.Now,
		byUID:      make(map[string]*models.Order),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.binder = binder.New(s.sel, s.cands)
	s.binder.Register(s.hooks)
	codec.Register(s.hooks)
	s.factory = orders.NewFactory(s.hooks)

	prior := models.NoEvent()
	if s.sessions != nil {
		row, err := s.sessions.EnsureSession(s.id, s.configName)
		if err != nil {
			return nil, fmt.Errorf("ensure session: %w", err)
		}
		s.id = row.ID
		prior = row.Event
	} else if s.id == "" {
		s.id = uuid.New().String()
	}
	s.log = opts.Logger.With().Str("session_id", s.id).Logger()

	if err := s.restoreOrders(); err != nil {
		return nil, err
	}

	s.machine = bootstrap.New(s.cands, s.sel, s.prompter,
		bootstrap.WithPrior(prior),
		bootstrap.WithClock(s.now),
		bootstrap.WithLogger(s.log),
	)
	s.hooks.OnSessionLoaded(s.runBootstrap)
	return s, nil
}

func (s *Session) restoreOrders() error {
	if s.orders == nil {
		return nil
	}
	recs, err := s.orders.ListBySession(s.id)
	if err != nil {
		return fmt.Errorf("restore orders: %w", err)
	}
	for _, rec := range recs {
		if rec.State == models.OrderStatePaid {
			s.factory.Observe(&models.Order{Name: rec.Name})
			continue
		}
		o, err := s.factory.Import(rec.Payload)
		if err != nil {
			s.log.Warn().Err(err).Str("order_uid", rec.UID).Msg("skipping unreadable stored order")
			continue
		}
		s.list = append(s.list, o)
		s.byUID[o.UID] = o
		s.current = o.UID
	}
	if len(s.list) > 0 {
		s.log.Info().Int("orders", len(s.list)).Msg("restored open orders")
	}
	return nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ConfigName returns the register the session runs on.
func (s *Session) ConfigName() string { return s.configName }

// Hooks exposes the lifecycle extension points for other features.
func (s *Session) Hooks() *lifecycle.Hooks { return s.hooks }

// Start runs the session-loaded hooks, including the bootstrap, once.
// Later calls return immediately with the first outcome. Start blocks while
// the bootstrap waits for the user.
func (s *Session) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.startErr = s.hooks.RunSessionLoaded(ctx)
	})
	return s.startErr
}

func (s *Session) runBootstrap(ctx context.Context) error {
	s.bootMu.Lock()
	m := s.machine
	s.bootMu.Unlock()
	if m == nil {
		return nil
	}

	ctx, done, err := s.track(ctx)
	if err != nil {
		return err
	}
	defer done()

	res := m.Run(ctx)

	s.bootMu.Lock()
	s.result = &res
	s.machine = nil
	s.bootMu.Unlock()

	if s.checkActive() != nil {
		s.sel.Clear()
		return nil
	}
	s.persistSelection()
	return nil
}

// track derives a ctx that End cancels and counts the caller as in flight
// until done is called.
func (s *Session) track(ctx context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, nil, ErrSessionEnded
	}
	s.inflight.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
		s.inflight.Done()
	}, nil
}

// Ready reports whether the bootstrap has finished.
func (s *Session) Ready() bool {
	s.bootMu.Lock()
	defer s.bootMu.Unlock()
	return s.result != nil
}

// BootstrapResult returns the bootstrap outcome once Ready.
func (s *Session) BootstrapResult() (bootstrap.Result, bool) {
	s.bootMu.Lock()
	defer s.bootMu.Unlock()
	if s.result == nil {
		return bootstrap.Result{}, false
	}
	return *s.result, true
}

// Selection returns the active selection.
func (s *Session) Selection() models.Selection { return s.sel.Current() }

// CurrentEvent returns the selected candidate, or nil when nothing is
// selected or the selected event is no longer in the candidate set.
func (s *Session) CurrentEvent() *models.Candidate {
	id, ok := s.sel.Current().CandidateID.Get()
	if !ok {
		return nil
	}
	c, ok := s.cands.Lookup(id)
	if !ok {
		return nil
	}
	return &c
}

// labelEvent is CurrentEvent, except that a selected id which left the
// candidate set is shown as "#<id>" since new orders still carry it.
func (s *Session) labelEvent() *models.Candidate {
	id, ok := s.sel.Current().CandidateID.Get()
	if !ok {
		return nil
	}
	if c, ok := s.cands.Lookup(id); ok {
		return &c
	}
	return &models.Candidate{ID: id, Name: fmt.Sprintf("#%d", id)}
}

// CurrentLabel is the event name or a localized placeholder.
func (s *Session) CurrentLabel() string { return s.tr.Label(s.labelEvent()) }

// Tooltip describes the selected event.
func (s *Session) Tooltip() string { return s.tr.Tooltip(s.labelEvent()) }

// Translator returns the session's translator.
func (s *Session) Translator() *i18n.Translator { return s.tr }

// Candidates returns the held candidate set.
func (s *Session) Candidates() []models.Candidate { return s.cands.List() }

// RefreshCandidates reloads the candidate set. On failure the held set is
// kept and the error wraps candidates.ErrDataUnavailable.
func (s *Session) RefreshCandidates(ctx context.Context) ([]models.Candidate, error) {
	return s.cands.Refresh(ctx, s.now())
}

// RequestReselection asks the user for an event again, outside the
// bootstrap. A confirmed choice re-tags the current order and becomes the
// selection; a cancelled prompt changes nothing.
func (s *Session) RequestReselection(ctx context.Context) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	ctx, done, err := s.track(ctx)
	if err != nil {
		return err
	}
	defer done()

	if _, err := s.cands.Refresh(ctx, s.now()); err != nil {
		if !errors.Is(err, candidates.ErrDataUnavailable) {
			return err
		}
		s.log.Warn().Err(err).Msg("refresh failed, offering the last known events")
	}

	set := s.cands.List()
	if len(set) == 0 {
		s.log.Info().Msg("no current events to choose from")
		return nil
	}

	choice, err := s.prompter.PromptForSelection(ctx, set)
	if err != nil {
		return fmt.Errorf("prompt for event: %w", err)
	}
	c, ok := choice.Candidate()
	if !ok {
		return nil
	}
	return s.ChooseEvent(c.ID)
}

// ChooseEvent makes id the selection and re-tags the current draft order.
// It fails with binder.ErrUnknownCandidate when id is not a current
// candidate, leaving everything unchanged.
func (s *Session) ChooseEvent(id int64) error {
	if err := s.checkReady(); err != nil {
		return err
	}

	s.mu.Lock()
	o := s.byUID[s.current]
	var err error
	if o != nil && o.State == models.OrderStateDraft {
		err = s.binder.BindOnUserAction(o, id)
	} else {
		o = nil
		if err = s.binder.Validate(id); err == nil {
			s.sel.Set(id)
		}
	}
	var snap *models.Order
	if err == nil && o != nil {
		snap = clone(o)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if snap != nil {
		s.persistOrder(snap)
	}
	s.persistSelection()
	s.log.Info().Int64("event_id", id).Msg("event chosen")
	return nil
}

// ClearSelection removes the selection. Existing orders keep their tag.
func (s *Session) ClearSelection() error {
	if err := s.checkReady(); err != nil {
		return err
	}
	s.sel.Clear()
	s.persistSelection()
	return nil
}

// NewOrder creates a draft order tagged with the current selection and
// makes it the current order.
func (s *Session) NewOrder() (*models.Order, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	o := s.factory.New(s.id)
	s.list = append(s.list, o)
	s.byUID[o.UID] = o
	s.current = o.UID
	snap := clone(o)
	s.mu.Unlock()

	s.persistOrder(snap)
	return snap, nil
}

// Order returns a copy of the order with the given uid.
func (s *Session) Order(uid string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byUID[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, uid)
	}
	return clone(o), nil
}

// Orders returns copies of all orders in creation order.
func (s *Session) Orders() []*models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Order, len(s.list))
	for i, o := range s.list {
		out[i] = clone(o)
	}
	return out
}

// CurrentOrder returns the current order, if any.
func (s *Session) CurrentOrder() (*models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byUID[s.current]
	if !ok {
		return nil, false
	}
	return clone(o), true
}

// SelectOrder makes uid the current order.
func (s *Session) SelectOrder(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUID[uid]; !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, uid)
	}
	s.current = uid
	return nil
}

// TagOrder re-tags one order with id and makes id the selection.
func (s *Session) TagOrder(uid string, id int64) (*models.Order, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	o, ok := s.byUID[uid]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, uid)
	}
	if o.State == models.OrderStatePaid {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderPaid, o.Name)
	}
	if err := s.binder.BindOnUserAction(o, id); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snap := clone(o)
	s.mu.Unlock()

	s.persistOrder(snap)
	s.persistSelection()
	return snap, nil
}

// AddLine appends a product line to a draft order.
func (s *Session) AddLine(uid string, line models.OrderLine) (*models.Order, error) {
	if line.Product == "" {
		return nil, fmt.Errorf("%w: product is required", ErrInvalidLine)
	}
	if !line.Qty.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidLine)
	}
	if line.PriceUnit.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidLine)
	}

	s.mu.Lock()
	o, ok := s.byUID[uid]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, uid)
	}
	if o.State == models.OrderStatePaid {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderPaid, o.Name)
	}
	o.Lines = append(o.Lines, line)
	snap := clone(o)
	s.mu.Unlock()

	s.persistOrder(snap)
	return snap, nil
}

// MarkPaid closes an order and notifies the sale publisher. Notification
// failures are logged and never fail the payment.
func (s *Session) MarkPaid(ctx context.Context, uid string) (*models.Order, error) {
	s.mu.Lock()
	o, ok := s.byUID[uid]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, uid)
	}
	if o.State == models.OrderStatePaid {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderPaid, o.Name)
	}
	paid := s.now().UTC()
	o.State = models.OrderStatePaid
	o.PaidAt = &paid
	if s.current == uid {
		s.current = ""
	}
	snap := clone(o)
	s.mu.Unlock()

	s.persistOrder(snap)

	var event *models.Candidate
	if id, ok := snap.EventTag.Get(); ok {
		if c, found := s.cands.Lookup(id); found {
			event = &c
		}
	}
	s.log.Info().
		Str("order", snap.Name).
		Str("event_id", snap.EventTag.String()).
		Str("total", snap.Total().StringFixed(2)).
		Msg("order paid")

	if s.notifier != nil {
		if err := s.notifier.OrderPaid(ctx, snap, event); err != nil {
			s.log.Error().Err(err).Str("order", snap.Name).Msg("failed to queue sale message")
		}
	}
	return snap, nil
}

// ExportOrder returns the exported JSON form of an order.
func (s *Session) ExportOrder(uid string) ([]byte, error) {
	s.mu.RLock()
	o, ok := s.byUID[uid]
	var snap *models.Order
	if ok {
		snap = clone(o)
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, uid)
	}
	return s.factory.Export(snap)
}

// ImportOrder adds or replaces an order from its exported form. The order
// joins this session; its event tag is taken from the data as is.
func (s *Session) ImportOrder(data []byte) (*models.Order, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	o, err := s.factory.Import(data)
	if err != nil {
		return nil, err
	}
	o.SessionID = s.id
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	if _, exists := s.byUID[o.UID]; exists {
		for i, existing := range s.list {
			if existing.UID == o.UID {
				s.list[i] = o
				break
			}
		}
	} else {
		s.list = append(s.list, o)
	}
	s.byUID[o.UID] = o
	snap := clone(o)
	s.mu.Unlock()

	s.persistOrder(snap)
	return snap, nil
}

// End closes the session. Open prompts are dismissed and the selection is
// discarded.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.mu.Unlock()

	s.cancel()
	idle := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		s.log.Warn().Err(ctx.Err()).Msg("prompt still open while ending session")
	}

	s.sel.Clear()
	if s.sessions != nil {
		if err := s.sessions.EndSession(s.id); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
	}
	s.log.Info().Msg("session ended")
	return nil
}

func (s *Session) checkActive() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return ErrSessionEnded
	}
	return nil
}

// checkReady also rejects selection changes until the bootstrap has settled.
func (s *Session) checkReady() error {
	if err := s.checkActive(); err != nil {
		return err
	}
	if !s.Ready() {
		return ErrNotReady
	}
	return nil
}

func (s *Session) persistSelection() {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.SetEvent(s.id, s.sel.Current().CandidateID); err != nil {
		s.log.Error().Err(err).Msg("failed to persist event selection")
	}
}

func (s *Session) persistOrder(o *models.Order) {
	if s.orders == nil {
		return
	}
	data, err := s.factory.Export(o)
	if err == nil {
		err = s.orders.Save(o, data)
	}
	if err != nil {
		s.log.Error().Err(err).Str("order", o.Name).Msg("failed to persist order")
	}
}

func clone(o *models.Order) *models.Order {
	cp := *o
	cp.Lines = append([]models.OrderLine(nil), o.Lines...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	return &cp
}

// NewLine builds an order line from decimal strings.
func NewLine(product, qty, priceUnit string) (models.OrderLine, error) {
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return models.OrderLine{}, fmt.Errorf("%w: quantity %q", ErrInvalidLine, qty)
	}
	p, err := decimal.NewFromString(priceUnit)
	if err != nil {
		return models.OrderLine{}, fmt.Errorf("%w: price %q", ErrInvalidLine, priceUnit)
	}
	return models.OrderLine{Product: product, Qty: q, PriceUnit: p}, nil
}
