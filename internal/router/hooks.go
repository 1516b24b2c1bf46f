package router

import (
	"fmt"
	"regexp"
	"sync"
)

var hookName = regexp.MustCompile(`^on[A-Z][A-Za-z]*$`)

// HookFactory mints the hook registered under a name.
type HookFactory func(name, msgType string) *Hook

// Hook fans a push type out to registered functions in registration order.
type Hook struct {
	name    string
	msgType string

	mu     sync.Mutex
	nextID int
	fns    []hookFunc
}

type hookFunc struct {
	id int
	fn func(Message)
}

// NewHook is the default HookFactory.
func NewHook(name, msgType string) *Hook {
	return &Hook{name: name, msgType: msgType}
}

// Name returns the hook name, e.g. "onChainInfo".
func (h *Hook) Name() string { return h.name }

// Type returns the push type the hook fires on, e.g. "ci".
func (h *Hook) Type() string { return h.msgType }

// Add registers fn and returns a function removing it.
func (h *Hook) Add(fn func(Message)) (remove func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.fns = append(h.fns, hookFunc{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, f := range h.fns {
			if f.id == id {
				h.fns = append(h.fns[:i:i], h.fns[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered functions.
func (h *Hook) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.fns)
}

func (h *Hook) fire(msg Message) int {
	h.mu.Lock()
	fns := make([]func(Message), len(h.fns))
	for i, f := range h.fns {
		fns[i] = f.fn
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
	return len(fns)
}

type hookEntry struct {
	msgType string
	factory HookFactory
}

// Hooks maps hook names to push types. Hooks are minted on first Get.
type Hooks struct {
	mu      sync.Mutex
	entries map[string]hookEntry
	minted  map[string]*Hook
	byType  map[string][]*Hook
}

// NewHooks creates an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{
		entries: make(map[string]hookEntry),
		minted:  make(map[string]*Hook),
		byType:  make(map[string][]*Hook),
	}
}

// DefaultHooks returns a registry with the venue's push categories.
func DefaultHooks() *Hooks {
	h := NewHooks()
	for name, msgType := range map[string]string{
		"onChainInfo":      "ci",
		"onOrderSnapshot":  "os",
		"onOrderNew":       "on",
		"onOrderUpdate":    "ou",
		"onOrderCancel":    "oc",
		"onTradeExecuted":  "te",
		"onTradeUpdate":    "tu",
		"onWalletSnapshot": "ws",
		"onWalletUpdate":   "wu",
		"onBalanceUpdate":  "bu",
		"onNotification":   "n",
	} {
		// Names above are valid.
		_ = h.Register(name, msgType, nil)
	}
	return h
}

// Register declares a hook. A nil factory uses NewHook.
func (h *Hooks) Register(name, msgType string, factory HookFactory) error {
	if !hookName.MatchString(name) {
		return fmt.Errorf("register hook %q: invalid name", name)
	}
	if msgType == "" {
		return fmt.Errorf("register hook %q: empty message type", name)
	}
	if factory == nil {
		factory = NewHook
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.minted[name]; ok {
		return fmt.Errorf("register hook %q: already in use", name)
	}
	h.entries[name] = hookEntry{msgType: msgType, factory: factory}
	return nil
}

// Get returns the hook for name, minting it on first access.
func (h *Hooks) Get(name string) (*Hook, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if hook, ok := h.minted[name]; ok {
		return hook, nil
	}

	entry, ok := h.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHook, name)
	}

	hook := entry.factory(name, entry.msgType)
	h.minted[name] = hook
	h.byType[entry.msgType] = append(h.byType[entry.msgType], hook)
	return hook, nil
}

// Names returns the registered hook names.
func (h *Hooks) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.entries))
	for name := range h.entries {
		names = append(names, name)
	}
	return names
}

// fire runs every minted hook for msgType and returns how many functions ran.
func (h *Hooks) fire(msg Message) int {
	h.mu.Lock()
	hooks := h.byType[msg.Type]
	h.mu.Unlock()

	n := 0
	for _, hook := range hooks {
		n += hook.fire(msg)
	}
	return n
}
