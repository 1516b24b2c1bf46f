package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/finex-ws/internal/auth"
	"github.com/rickgao/finex-ws/internal/connection"
	"github.com/rickgao/finex-ws/internal/correlator"
	"github.com/rickgao/finex-ws/internal/events"
	"github.com/rickgao/finex-ws/internal/order"
	"github.com/rickgao/finex-ws/internal/router"
	"github.com/rickgao/finex-ws/internal/session"
	"github.com/rickgao/finex-ws/internal/wire"
)

// Errors
var (
	ErrClosed = errors.New("client closed")
)

// Options configures a Client.
type Options struct {
	Transports map[connection.Role]string
	Connection connection.ClientConfig

	Network        auth.Network // ChainID, when set, seeds the chain cache
	Contract       string
	RequestTimeout time.Duration
	AuthTimeout    time.Duration
	VerifyTimeout  time.Duration

	ChainFetch session.ChainFetchFunc // Fallback when no chain id is known
	Hooks      *router.Hooks          // nil uses router.DefaultHooks
	Recorder   order.Recorder         // Optional command journal
	Factory    connection.ClientFactory
	Logger     *slog.Logger
}

// Stats is a point-in-time view of the client.
type Stats struct {
	Router    router.Stats
	Pending   int
	Ready     bool
	Connected map[connection.Role]bool
	AuthState auth.State
}

// Client is the venue protocol client.
type Client struct {
	logger *slog.Logger

	bus        *events.Bus
	registry   *connection.Registry
	aggregator *connection.Aggregator
	dispatcher *router.Dispatcher
	correlator *correlator.Correlator
	chain      *session.ChainCache
	machine    *auth.Machine
	pipeline   *order.Pipeline

	runCtx    context.Context
	runCancel context.CancelFunc
	detach    []func()

	mu      sync.Mutex
	started bool
	closed  bool
}

type chainInfo struct {
	ChainID string `json:"chain_id"`
}

// New wires a Client. No network activity happens until Open.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hooks := opts.Hooks
	if hooks == nil {
		hooks = router.DefaultHooks()
	}

	var regOpts []connection.RegistryOption
	if opts.Factory != nil {
		regOpts = append(regOpts, connection.WithClientFactory(opts.Factory))
	}

	bus := events.New()
	registry := connection.NewRegistry(opts.Transports, opts.Connection, logger, regOpts...)
	corr := correlator.New(registry, logger, opts.RequestTimeout)
	chain := session.NewChainCache(opts.ChainFetch)
	chain.Seed(opts.Network.ChainID)

	writer := session.NewContext()
	machine := auth.NewMachine(corr, writer, chain, auth.Config{
		Network:  opts.Network,
		Contract: opts.Contract,
		Timeout:  opts.AuthTimeout,
	}, logger)

	var pipeOpts []order.Option
	if opts.Recorder != nil {
		pipeOpts = append(pipeOpts, order.WithRecorder(opts.Recorder))
	}
	pipeline := order.NewPipeline(machine, chain, registry, corr, order.Config{
		Contract:      opts.Contract,
		VerifyTimeout: opts.VerifyTimeout,
	}, logger, pipeOpts...)

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		logger:     logger,
		bus:        bus,
		registry:   registry,
		aggregator: connection.NewAggregator(registry, bus, logger),
		dispatcher: router.NewDispatcher(bus, corr, hooks, logger),
		correlator: corr,
		chain:      chain,
		machine:    machine,
		pipeline:   pipeline,
		runCtx:     runCtx,
		runCancel:  cancel,
	}

	c.detach = append(c.detach,
		c.dispatcher.Attach(),
		bus.On(wire.PushChainInfo, c.onChainInfo),
	)
	return c
}

func (c *Client) onChainInfo(payload any) {
	msg, ok := payload.(router.Message)
	if !ok {
		return
	}
	var info chainInfo
	if err := msg.Decode(&info); err != nil {
		c.logger.Debug("ignoring malformed chain info", "error", err)
		return
	}
	if c.chain.Seed(info.ChainID) {
		c.logger.Info("chain id received", "chain_id", info.ChainID)
	}
}

// Open connects every channel. Channel events are consumed until Close.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.started {
		c.started = true
		c.aggregator.Start(c.runCtx)
	}
	c.mu.Unlock()

	return c.registry.Open(ctx)
}

// Start opens every channel and waits for the ready signal.
func (c *Client) Start(ctx context.Context) error {
	if err := c.Open(ctx); err != nil {
		return err
	}

	select {
	case <-c.aggregator.Ready():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for ready: %w", ctx.Err())
	}
}

// Ready is closed once every channel has connected.
func (c *Client) Ready() <-chan struct{} {
	return c.aggregator.Ready()
}

// Close closes every channel and stops event consumption.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.registry.Close()
	c.runCancel()
	c.aggregator.Wait()

	for _, off := range c.detach {
		off()
	}
	return err
}

// On registers fn for a bus event or namespace.
func (c *Client) On(event string, fn events.Handler) (off func()) {
	return c.bus.On(event, fn)
}

// Once registers fn for the next emission of event.
func (c *Client) Once(event string, fn events.Handler) (off func()) {
	return c.bus.Once(event, fn)
}

// Send writes msg on role.
func (c *Client) Send(role connection.Role, msg any) error {
	return c.registry.Send(role, msg)
}

// Subscribe subscribes to topic on role.
func (c *Client) Subscribe(role connection.Role, topic string, args map[string]any) error {
	return c.registry.Subscribe(role, topic, args)
}

// Unsubscribe unsubscribes from topic on role.
func (c *Client) Unsubscribe(role connection.Role, topic string, args map[string]any) error {
	return c.registry.Unsubscribe(role, topic, args)
}

// Request sends a correlated request and waits for its reply.
func (c *Client) Request(ctx context.Context, req correlator.Request) (router.Message, error) {
	return c.correlator.Request(ctx, req)
}

// Auth authenticates with creds, or with the current identity when nil.
func (c *Client) Auth(ctx context.Context, creds *auth.Credentials) (session.Account, error) {
	return c.machine.Auth(ctx, creds)
}

// SetAuth replaces the identity source without authenticating.
func (c *Client) SetAuth(creds auth.Credentials) {
	c.machine.SetAuth(creds)
}

// Session returns the read-only session context.
func (c *Client) Session() *session.Context {
	return c.machine.Session()
}

// Place signs and sends a new order.
func (c *Client) Place(ctx context.Context, p order.Params) (order.Result, error) {
	return c.pipeline.Place(ctx, p)
}

// Cancel sends a cancel for order id.
func (c *Client) Cancel(ctx context.Context, id string) (order.Result, error) {
	return c.pipeline.Cancel(ctx, id)
}

// VerifyTx asks the auxiliary channel to verify a signed transaction.
func (c *Client) VerifyTx(ctx context.Context, meta any, uuid string, opts order.VerifyOptions) (router.Message, error) {
	return c.pipeline.VerifyTx(ctx, meta, uuid, opts)
}

// Hook returns the named hook, minting it on first use.
func (c *Client) Hook(name string) (*router.Hook, error) {
	return c.dispatcher.AddCallback(name)
}

// ChainID returns the cached chain id, fetching it if needed.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	return c.chain.Get(ctx)
}

// Stats returns a snapshot of client state.
func (c *Client) Stats() Stats {
	connected := make(map[connection.Role]bool, c.registry.Len())
	for _, role := range c.registry.Roles() {
		connected[role] = c.aggregator.Connected(role)
	}
	return Stats{
		Router:    c.dispatcher.Stats(),
		Pending:   c.correlator.Pending(),
		Ready:     c.aggregator.IsReady(),
		Connected: connected,
		AuthState: c.machine.State(),
	}
}
