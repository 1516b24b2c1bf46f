// Package events provides the named-event bus behind the client's produced
// event surface (open, close, error, message, ready and routed namespaces).
package events

import "sync"

// Handler receives an emitted payload.
type Handler func(payload any)

type subscription struct {
	id   uint64
	fn   Handler
	once bool
}

// Bus dispatches payloads synchronously to handlers registered under a name.
// Handlers run outside the bus lock, in registration order.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string][]subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[string][]subscription),
	}
}

// On registers fn for every emission of name. The returned func removes it.
func (b *Bus) On(name string, fn Handler) (off func()) {
	return b.add(name, fn, false)
}

// Once registers fn for the next emission of name only.
func (b *Bus) Once(name string, fn Handler) (off func()) {
	return b.add(name, fn, true)
}

func (b *Bus) add(name string, fn Handler, once bool) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, fn: fn, once: once})
	b.mu.Unlock()

	return func() { b.remove(name, id) }
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[name]
	for i, s := range subs {
		if s.id == id {
			b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[name]) == 0 {
		delete(b.handlers, name)
	}
}

// Emit delivers payload to every handler of name and returns how many ran.
// One-shot handlers are removed before they are invoked.
func (b *Bus) Emit(name string, payload any) int {
	b.mu.Lock()
	subs := b.handlers[name]
	if len(subs) == 0 {
		b.mu.Unlock()
		return 0
	}

	run := make([]Handler, 0, len(subs))
	keep := subs[:0:0]
	for _, s := range subs {
		run = append(run, s.fn)
		if !s.once {
			keep = append(keep, s)
		}
	}
	if len(keep) == 0 {
		delete(b.handlers, name)
	} else {
		b.handlers[name] = keep
	}
	b.mu.Unlock()

	for _, fn := range run {
		fn(payload)
	}
	return len(run)
}

// Count returns the number of handlers registered for name.
func (b *Bus) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[name])
}
