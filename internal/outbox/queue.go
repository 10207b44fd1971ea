package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Queue is a channel backed outbox. It is safe for concurrent use.
type Queue struct {
	msgChan   chan *Message
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     *Store
	closed    bool

	workers    int
	maxRetries int
	backoff    Backoff
	log        zerolog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.maxRetries = n
		}
	}
}

func WithBackoff(b Backoff) Option {
	return func(q *Queue) { q.backoff = b }
}

func WithLogger(log zerolog.Logger) Option {
	return func(q *Queue) { q.log = log }
}

// NewQueue creates a queue. bufferSize is how many messages can wait before
// Enqueue blocks. store may be nil.
func NewQueue(bufferSize int, store *Store, opts ...Option) *Queue {
	q := &Queue{
		msgChan:    make(chan *Message, bufferSize),
		closeChan:  make(chan struct{}),
		store:      store,
		workers:    2,
		maxRetries: 3,
		backoff:    LinearBackoff(time.Second),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue assigns an id if missing, records the message and queues it.
func (q *Queue) Enqueue(ctx context.Context, m *Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = StatusPending
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.MaxRetries == 0 {
		m.MaxRetries = q.maxRetries
	}

	if q.store != nil {
		if err := q.store.Save(ctx, m); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	select {
	case q.msgChan <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start launches the workers. handler is called concurrently.
func (q *Queue) Start(ctx context.Context, handler Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			q.drain(ctx, handler)
			return
		case m := <-q.msgChan:
			if m == nil {
				return
			}
			q.process(ctx, m, handler)
		}
	}
}

// drain delivers whatever is still buffered once the queue is closed.
func (q *Queue) drain(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-q.msgChan:
			if m == nil {
				return
			}
			q.process(ctx, m, handler)
		default:
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, m *Message, handler Handler) {
	m.Status = StatusRunning
	now := time.Now()
	m.StartedAt = &now
	q.save(ctx, m)

	err := handler(ctx, m)

	completedAt := time.Now()
	m.CompletedAt = &completedAt

	if err == nil {
		m.Status = StatusCompleted
		m.Error = ""
		q.save(ctx, m)
		return
	}

	m.Error = err.Error()
	if m.RetryCount >= m.MaxRetries {
		m.Status = StatusFailed
		q.save(ctx, m)
		q.log.Error().Err(err).Str("message_id", m.ID).Str("kind", m.Kind).Int("attempts", m.RetryCount+1).Msg("outbox delivery failed")
		return
	}

	m.RetryCount++
	m.Status = StatusRetrying
	q.save(ctx, m)
	delay := q.backoff(m.RetryCount)
	q.log.Warn().Err(err).Str("message_id", m.ID).Int("retry", m.RetryCount).Dur("backoff", delay).Msg("outbox delivery failed, retrying")

	time.AfterFunc(delay, func() {
		m.Status = StatusPending
		m.StartedAt = nil
		m.CompletedAt = nil
		if err := q.Enqueue(ctx, m); err != nil {
			m.Status = StatusFailed
			q.save(context.Background(), m)
		}
	})
}

func (q *Queue) save(ctx context.Context, m *Message) {
	if q.store != nil {
		_ = q.store.Save(ctx, m)
	}
}

// Stop closes the queue, delivers the messages still buffered and waits for
// the workers to finish.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}
