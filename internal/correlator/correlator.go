package correlator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/finex-ws/internal/connection"
	"github.com/rickgao/finex-ws/internal/metrics"
	"github.com/rickgao/finex-ws/internal/router"
)

// Errors
var (
	ErrTimeout        = errors.New("request timed out")
	ErrDuplicateID    = errors.New("duplicate correlation id")
	ErrNamespaceInUse = errors.New("namespace already pending")
	ErrInvalidRequest = errors.New("invalid request")
)

// DefaultTimeout applies when neither the request nor the Correlator sets one.
const DefaultTimeout = 10 * time.Second

const expiredRetention = time.Minute

// AuthError is a server-signaled authentication failure.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth error %d", e.Code)
	}
	return fmt.Sprintf("auth error %d: %s", e.Code, e.Message)
}

// Sender writes a message on a channel role.
type Sender interface {
	Send(role connection.Role, msg any) error
}

// Request describes one outbound request.
type Request struct {
	Role      connection.Role
	ID        string
	Timeout   time.Duration // Zero uses the Correlator default
	Payload   any
	Namespace string

	// OnSent, if set, runs once the payload was handed to the transport.
	// It does not run when validation or the send fails.
	OnSent func()
}

// Callback receives the terminal result of a request. It is invoked exactly
// once, outside the table lock.
type Callback func(msg router.Message, err error)

type state int

const (
	statePending state = iota
	stateResolved
	stateTimedOut
)

type entry struct {
	req    Request
	cb     Callback
	state  state
	timer  *time.Timer
	sentAt time.Time
}

// Correlator owns the correlation table.
type Correlator struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration

	mu          sync.Mutex
	byID        map[string]*entry
	byNamespace map[string]*entry
	expired     map[string]time.Time // timed-out namespaces, for late reply accounting
}

// New creates a Correlator sending through sender.
func New(sender Sender, logger *slog.Logger, defaultTimeout time.Duration) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}

	return &Correlator{
		sender:      sender,
		logger:      logger,
		timeout:     defaultTimeout,
		byID:        make(map[string]*entry),
		byNamespace: make(map[string]*entry),
		expired:     make(map[string]time.Time),
	}
}

// SendRequest registers req and sends its payload. Validation failures are
// returned synchronously and cb is not called. Otherwise cb is called exactly
// once with the reply, ErrTimeout, an *AuthError or the send error.
func (c *Correlator) SendRequest(req Request, cb Callback) error {
	if req.ID == "" || req.Namespace == "" {
		return fmt.Errorf("%w: id and namespace are required", ErrInvalidRequest)
	}
	if cb == nil {
		cb = func(router.Message, error) {}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	c.mu.Lock()
	if _, ok := c.byID[req.ID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, req.ID)
	}
	if _, ok := c.byNamespace[req.Namespace]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNamespaceInUse, req.Namespace)
	}

	delete(c.expired, req.Namespace)

	e := &entry{req: req, cb: cb, state: statePending, sentAt: time.Now()}
	c.byID[req.ID] = e
	c.byNamespace[req.Namespace] = e
	e.timer = time.AfterFunc(timeout, func() { c.expire(e) })
	c.mu.Unlock()

	metrics.RequestsPending.Inc()

	c.logger.Debug("request sent",
		"role", req.Role,
		"id", req.ID,
		"namespace", req.Namespace,
		"timeout", timeout,
	)

	if err := c.sender.Send(req.Role, req.Payload); err != nil {
		c.fail(e, fmt.Errorf("send request %s: %w", req.ID, err))
		return nil
	}
	if req.OnSent != nil {
		req.OnSent()
	}
	return nil
}

// Request sends req and blocks until its terminal result. Cancelling ctx
// abandons the wait; the entry still completes on reply or deadline.
func (c *Correlator) Request(ctx context.Context, req Request) (router.Message, error) {
	type result struct {
		msg router.Message
		err error
	}
	done := make(chan result, 1)

	if err := c.SendRequest(req, func(msg router.Message, err error) {
		done <- result{msg, err}
	}); err != nil {
		return router.Message{}, err
	}

	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		return router.Message{}, ctx.Err()
	}
}

// Resolve completes the request pending on namespace with msg. It returns
// false when nothing is pending, in which case msg is dropped.
func (c *Correlator) Resolve(namespace string, msg router.Message) bool {
	c.mu.Lock()
	e, ok := c.byNamespace[namespace]
	if !ok {
		_, late := c.expired[namespace]
		delete(c.expired, namespace)
		c.mu.Unlock()

		if late {
			metrics.LateReplies.Inc()
			c.logger.Debug("dropping late reply", "namespace", namespace, "role", msg.Role)
		}
		return false
	}
	c.claim(e, stateResolved)
	c.mu.Unlock()

	var err error
	if msg.IsAuthError() {
		err = &AuthError{Code: msg.Code, Message: msg.Msg}
	}
	c.complete(e, msg, err)
	return true
}

// Pending returns the number of in-flight requests.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

func (c *Correlator) expire(e *entry) {
	c.mu.Lock()
	if e.state != statePending {
		c.mu.Unlock()
		return
	}
	c.claim(e, stateTimedOut)

	now := time.Now()
	for ns, at := range c.expired {
		if now.Sub(at) > expiredRetention {
			delete(c.expired, ns)
		}
	}
	c.expired[e.req.Namespace] = now
	c.mu.Unlock()

	c.logger.Warn("request timed out", "id", e.req.ID, "namespace", e.req.Namespace)
	c.complete(e, router.Message{}, fmt.Errorf("%w: %s after %s",
		ErrTimeout, e.req.Namespace, time.Since(e.sentAt).Round(time.Millisecond)))
}

// fail completes e with err unless it already left pending.
func (c *Correlator) fail(e *entry, err error) {
	c.mu.Lock()
	if e.state != statePending {
		c.mu.Unlock()
		return
	}
	c.claim(e, stateResolved)
	c.mu.Unlock()

	c.complete(e, router.Message{}, err)
}

// claim removes e from the table. Must be called with lock held on a pending
// entry.
func (c *Correlator) claim(e *entry, to state) {
	e.state = to
	e.timer.Stop()
	delete(c.byID, e.req.ID)
	delete(c.byNamespace, e.req.Namespace)
}

func (c *Correlator) complete(e *entry, msg router.Message, err error) {
	outcome := "ok"
	switch {
	case e.state == stateTimedOut:
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.RequestsPending.Dec()
	metrics.RequestDuration.WithLabelValues(string(e.req.Role), outcome).Observe(time.Since(e.sentAt).Seconds())

	e.cb(msg, err)
}
