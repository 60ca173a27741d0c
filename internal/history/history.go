// Package history provides snapshot-stack undo/redo over any cloneable state.
//
// The Manager never inspects the state it stores. The caller supplies three
// functions: capture (read the current state), apply (replace the current
// state) and clone (deep copy). Every entry is cloned on the way in and on
// the way out, so the stack never shares mutable data with the live state.
//
// Stack layout:
//
//	[s0 s1 s2 s3]      index=3: current state is s3
//	undo -> index=2    apply(clone(s2))
//	push -> [s0 s1 s2 s4], redo tail s3 dropped
package history

import "sync"

// DefaultLimit is the maximum number of entries kept when no limit is given.
const DefaultLimit = 50

// Listener is called after a snapshot has been applied by Undo or Redo.
type Listener[S any] func(applied S)

// Manager is an undo/redo stack of snapshots.
//
// Thread-safety: methods are safe for concurrent use, but capture, apply and
// listeners are called with the lock released and must not assume
// exclusivity.
type Manager[S any] struct {
	mu        sync.Mutex
	capture   func() S
	apply     func(S)
	clone     func(S) S
	stack     []S
	index     int
	limit     int
	dirty     bool
	nextID    int
	listeners map[int]Listener[S]
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	limit int
}

// WithLimit caps the number of stored entries. Values below 1 fall back to
// DefaultLimit.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// New creates an empty Manager.
func New[S any](capture func() S, apply func(S), clone func(S) S, opts ...Option) *Manager[S] {
	o := options{limit: DefaultLimit}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit < 1 {
		o.limit = DefaultLimit
	}
	return &Manager[S]{
		capture:   capture,
		apply:     apply,
		clone:     clone,
		index:     -1,
		limit:     o.limit,
		listeners: make(map[int]Listener[S]),
	}
}

// Push captures the current state and appends it after the current index,
// discarding any redo tail. When the stack exceeds its limit the oldest
// entries are dropped. Push marks the history as having unsaved changes.
func (m *Manager[S]) Push() {
	snap := m.clone(m.capture())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stack = append(m.stack[:m.index+1], snap)
	if overflow := len(m.stack) - m.limit; overflow > 0 {
		// Zero dropped entries so they can be collected.
		var zero S
		for i := 0; i < overflow; i++ {
			m.stack[i] = zero
		}
		m.stack = m.stack[overflow:]
	}
	m.index = len(m.stack) - 1
	m.dirty = true
}

// Replace resets the stack to a single entry. Used on fresh load; it does
// not mark unsaved changes and it does not call apply.
func (m *Manager[S]) Replace(snapshot S) {
	snap := m.clone(snapshot)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stack = []S{snap}
	m.index = 0
	m.dirty = false
}

// Undo steps back one entry and applies it. Returns false, doing nothing, at
// the start of the stack.
func (m *Manager[S]) Undo() bool {
	return m.step(-1)
}

// Redo steps forward one entry and applies it. Returns false, doing nothing,
// at the end of the stack.
func (m *Manager[S]) Redo() bool {
	return m.step(1)
}

func (m *Manager[S]) step(delta int) bool {
	m.mu.Lock()
	next := m.index + delta
	if next < 0 || next >= len(m.stack) {
		m.mu.Unlock()
		return false
	}
	m.index = next
	m.dirty = true
	snap := m.clone(m.stack[next])
	listeners := m.listenersLocked()
	m.mu.Unlock()

	m.apply(snap)
	for _, l := range listeners {
		l(m.clone(snap))
	}
	return true
}

// CanUndo reports whether Undo would do anything.
func (m *Manager[S]) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index > 0
}

// CanRedo reports whether Redo would do anything.
func (m *Manager[S]) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index >= 0 && m.index < len(m.stack)-1
}

// Len returns the number of stored entries.
func (m *Manager[S]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

// Index returns the position of the current entry, or -1 when empty.
func (m *Manager[S]) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// At returns a clone of the entry at i.
func (m *Manager[S]) At(i int) (S, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.stack) {
		var zero S
		return zero, false
	}
	return m.clone(m.stack[i]), true
}

// Dirty reports whether there are changes since the last Replace or
// MarkSaved.
func (m *Manager[S]) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// MarkSaved clears the unsaved-changes flag.
func (m *Manager[S]) MarkSaved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = false
}

// Rewrite transforms every stored entry in place. Used to carry server
// assigned ids back into the whole stack after a save.
func (m *Manager[S]) Rewrite(fn func(S) S) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.stack {
		m.stack[i] = m.clone(fn(m.stack[i]))
	}
}

// OnApply registers a listener called after every Undo or Redo. The returned
// function unregisters it.
func (m *Manager[S]) OnApply(l Listener[S]) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// listenersLocked returns listeners in registration order.
func (m *Manager[S]) listenersLocked() []Listener[S] {
	out := make([]Listener[S], 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if l, ok := m.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}
