package session

import (
	"fmt"
	"sync"
)

// Source records where an Account came from.
type Source string

const (
	SourceStatic   Source = "static"
	SourceProvider Source = "provider"
)

// Account is the authenticated identity.
type Account struct {
	Name          string `json:"account"`
	Permission    string `json:"permission"`
	Authorization string `json:"authorization,omitempty"`
	PublicKey     string `json:"public_key,omitempty"`
	Source        Source `json:"source"`
}

// String returns "name@permission".
func (a Account) String() string {
	return fmt.Sprintf("%s@%s", a.Name, a.Permission)
}

// IsZero reports whether a is unset.
func (a Account) IsZero() bool {
	return a.Name == ""
}

// Keys are the session secrets issued by the server on auth.
type Keys struct {
	Key1 string `json:"key1"`
	Key2 string `json:"key2"`
}

// Valid reports whether both keys are present.
func (k Keys) Valid() bool {
	return k.Key1 != "" && k.Key2 != ""
}

// Context is the process-wide session state.
type Context struct {
	mu      sync.RWMutex
	account Account
	keys    Keys
}

// Writer is the single mutation handle for a Context.
type Writer struct {
	ctx *Context
}

// NewContext creates an empty Context and its Writer.
func NewContext() (*Context, *Writer) {
	c := &Context{}
	return c, &Writer{ctx: c}
}

// Account returns the active account and whether one is set.
func (c *Context) Account() (Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account, !c.account.IsZero()
}

// Keys returns the session keys and whether they are present.
func (c *Context) Keys() (Keys, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys, c.keys.Valid()
}

// Context returns the Context this Writer mutates.
func (w *Writer) Context() *Context {
	return w.ctx
}

// SetAccount replaces the active account.
func (w *Writer) SetAccount(a Account) {
	w.ctx.mu.Lock()
	w.ctx.account = a
	w.ctx.mu.Unlock()
}

// SetKeys replaces the session keys.
func (w *Writer) SetKeys(k Keys) {
	w.ctx.mu.Lock()
	w.ctx.keys = k
	w.ctx.mu.Unlock()
}

// Adopt sets the active account. Keys issued to a different account are
// dropped so they are never paired with it.
func (w *Writer) Adopt(a Account) {
	w.ctx.mu.Lock()
	cur := w.ctx.account
	if cur.IsZero() || cur.Name != a.Name || cur.Permission != a.Permission {
		w.ctx.keys = Keys{}
	}
	w.ctx.account = a
	w.ctx.mu.Unlock()
}

// Establish sets account and keys together.
func (w *Writer) Establish(a Account, k Keys) {
	w.ctx.mu.Lock()
	w.ctx.account = a
	w.ctx.keys = k
	w.ctx.mu.Unlock()
}

// ClearAccount drops the cached account.
func (w *Writer) ClearAccount() {
	w.ctx.mu.Lock()
	w.ctx.account = Account{}
	w.ctx.mu.Unlock()
}

// Clear drops account and keys.
func (w *Writer) Clear() {
	w.ctx.mu.Lock()
	w.ctx.account = Account{}
	w.ctx.keys = Keys{}
	w.ctx.mu.Unlock()
}
