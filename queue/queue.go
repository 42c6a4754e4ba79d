// Package queue holds classified inbound messages until a caller consumes
// them.
//
// The queue is bounded and strictly FIFO. When full, the oldest entry is
// evicted to make room: the engine is a single slow producer and a stale
// reply is worse than a lost one.
//
// Waiters have two signals. Available is closed while anything is queued,
// which is enough for an unfiltered wait. A filtered wait cannot use it, since
// the queue may hold only messages of the other kind, so PopOrNotify hands out
// a channel closed by the next push instead.
package queue

import (
	"sync"

	"github.com/m4xw311/bachmcp/message"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 500

// EvictFunc is called with each message dropped on overflow. It runs after
// the queue lock is released.
type EvictFunc func(message.Message)

type Option func(*Queue)

// WithEvictFunc registers a callback for overflow evictions.
func WithEvictFunc(fn EvictFunc) Option {
	return func(q *Queue) { q.onEvict = fn }
}

// Queue is safe for concurrent use. Every operation is atomic under one
// mutex.
type Queue struct {
	mu       sync.Mutex
	items    []message.Message
	capacity int
	onEvict  EvictFunc

	// ready is closed while the availability signal is set and replaced by
	// a fresh channel when it is cleared.
	ready    chan struct{}
	readySet bool

	// pushed is closed and replaced on every push, waking anyone waiting
	// for a new arrival regardless of the availability signal.
	pushed chan struct{}
}

func New(capacity int, opts ...Option) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		items:    make([]message.Message, 0, min(capacity, 64)),
		capacity: capacity,
		ready:    make(chan struct{}),
		pushed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Capacity returns the fixed bound.
func (q *Queue) Capacity() int { return q.capacity }

// Push appends msg, evicting the oldest entry first if the queue is full,
// and sets the availability signal. It reports whether an entry was evicted.
func (q *Queue) Push(msg message.Message) bool {
	q.mu.Lock()
	var (
		evicted message.Message
		dropped bool
	)
	if len(q.items) >= q.capacity {
		evicted = q.items[0]
		q.items[0] = message.Message{}
		q.items = q.items[1:]
		dropped = true
	}
	q.items = append(q.items, msg)
	q.setReadyLocked()
	close(q.pushed)
	q.pushed = make(chan struct{})
	onEvict := q.onEvict
	q.mu.Unlock()

	if dropped && onEvict != nil {
		onEvict(evicted)
	}
	return dropped
}

// Pop removes and returns the oldest message whose kind matches filter.
// Other entries keep their relative order. The availability signal is
// cleared only when the queue becomes completely empty.
func (q *Queue) Pop(filter message.Kind) (message.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked(filter)
}

// PopOrNotify behaves like Pop. When nothing matches it also returns a
// channel that is closed by the next Push, letting a waiter block without
// missing an arrival that lands between the failed pop and the wait.
func (q *Queue) PopOrNotify(filter message.Kind) (message.Message, bool, <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if msg, ok := q.popLocked(filter); ok {
		return msg, true, nil
	}
	return message.Message{}, false, q.pushed
}

func (q *Queue) popLocked(filter message.Kind) (message.Message, bool) {
	for i, msg := range q.items {
		if !msg.Kind.Matches(filter) {
			continue
		}
		if i == 0 {
			q.items[0] = message.Message{}
			q.items = q.items[1:]
		} else {
			q.items = append(q.items[:i], q.items[i+1:]...)
		}
		if len(q.items) == 0 {
			q.clearReadyLocked()
		}
		return msg, true
	}
	if len(q.items) == 0 {
		q.clearReadyLocked()
	}
	return message.Message{}, false
}

// PeekLatest returns the newest message matching filter without removing it.
func (q *Queue) PeekLatest(filter message.Kind) (message.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := len(q.items) - 1; i >= 0; i-- {
		if q.items[i].Kind.Matches(filter) {
			return q.items[i], true
		}
	}
	return message.Message{}, false
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush discards every entry, clears the availability signal and returns
// how many entries were dropped.
func (q *Queue) Flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	clear(q.items)
	q.items = q.items[:0]
	q.clearReadyLocked()
	return n
}

// Available returns a channel that is closed while the availability signal
// is set. Take a fresh channel after each wake: a cleared signal is a new
// channel.
func (q *Queue) Available() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready
}

func (q *Queue) setReadyLocked() {
	if !q.readySet {
		close(q.ready)
		q.readySet = true
	}
}

func (q *Queue) clearReadyLocked() {
	if q.readySet {
		q.ready = make(chan struct{})
		q.readySet = false
	}
}
