package actor

import (
	"context"
	"sync"
	"sync/atomic"
)

// Mailbox is the FIFO queue feeding a single actor's receive loop. Exactly
// one goroutine — the owning actor's process loop — may call Next/Drain;
// any number of producers may call Send/TrySend concurrently.
//
// Holds the read lock for the whole send to make Close race-free, the same
// technique as a generic channel-backed mailbox keyed on a (message,
// promise) pair, specialized here to the envelope type since RELAY's Ask
// replies travel as ordinary routed messages rather than in-process
// promises.
type Mailbox interface {
	// Send blocks until env is accepted, ctx is cancelled, or the mailbox
	// is closed. Returns true iff env was accepted.
	Send(ctx context.Context, env envelope) bool

	// TrySend accepts env without blocking. Returns false if the mailbox
	// is full or closed.
	TrySend(env envelope) bool

	// Next blocks until an envelope is available or ctx is cancelled /
	// the mailbox closes, returning ok=false in the latter cases.
	Next(ctx context.Context) (env envelope, ok bool)

	// Close prevents further sends. Idempotent.
	Close()

	// IsClosed reports whether Close has been called.
	IsClosed() bool

	// Drain returns any envelopes left in the queue after Close; it
	// returns an empty slice if the mailbox is not yet closed.
	Drain() []envelope
}

// chanMailbox is the default Mailbox implementation, backed by a buffered
// Go channel.
type chanMailbox struct {
	ch     chan envelope
	closed atomic.Bool
	mu     sync.RWMutex
	once   sync.Once
}

// NewMailbox creates an unbounded-feeling (but actually bounded) FIFO
// mailbox with the given buffer capacity. A non-positive capacity defaults
// to 1.
func NewMailbox(capacity int) Mailbox {
	if capacity <= 0 {
		capacity = 1
	}

	return &chanMailbox{ch: make(chan envelope, capacity)}
}

// Send implements Mailbox.
func (m *chanMailbox) Send(ctx context.Context, env envelope) bool {
	if ctx.Err() != nil {
		return false
	}

	// Holding the read lock for the whole send prevents a concurrent
	// Close from closing the channel underneath us: Close must take the
	// write lock, which cannot be granted while any Send holds the read
	// lock.
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

// TrySend implements Mailbox.
func (m *chanMailbox) TrySend(env envelope) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true
	default:
		return false
	}
}

// Next implements Mailbox.
func (m *chanMailbox) Next(ctx context.Context) (envelope, bool) {
	select {
	case env, ok := <-m.ch:
		return env, ok
	case <-ctx.Done():
		return envelope{}, false
	}
}

// Close implements Mailbox.
func (m *chanMailbox) Close() {
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.closed.Store(true)
		close(m.ch)
	})
}

// IsClosed implements Mailbox.
func (m *chanMailbox) IsClosed() bool {
	return m.closed.Load()
}

// Drain implements Mailbox. It only returns data once Close has been
// called; calling it beforehand returns nil.
func (m *chanMailbox) Drain() []envelope {
	if !m.IsClosed() {
		return nil
	}

	var remaining []envelope
	for {
		select {
		case env, ok := <-m.ch:
			if !ok {
				return remaining
			}
			remaining = append(remaining, env)
		default:
			return remaining
		}
	}
}
