package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/finex-ws/internal/connection"
	"github.com/rickgao/finex-ws/internal/correlator"
	"github.com/rickgao/finex-ws/internal/metrics"
	"github.com/rickgao/finex-ws/internal/router"
	"github.com/rickgao/finex-ws/internal/session"
	"github.com/rickgao/finex-ws/internal/wire"
)

// Errors
var (
	ErrNoIdentity    = errors.New("no identity source configured")
	ErrNoSigner      = errors.New("no signer configured")
	ErrMissingKeys   = errors.New("auth reply without session keys")
	ErrAccountChange = errors.New("auth reply for a different account")
)

// AuthNamespace is the namespace auth replies are routed under.
const AuthNamespace = "_auth"

// State is an authentication state.
type State string

const (
	StateUnauthenticated   State = "unauthenticated"
	StateResolvingIdentity State = "resolving-identity"
	StateAwaitingChallenge State = "awaiting-challenge-response"
	StateAuthenticated     State = "authenticated"
	StateFailed            State = "auth-failed"
)

// Requester sends a correlated request and waits for its reply.
type Requester interface {
	Request(ctx context.Context, req correlator.Request) (router.Message, error)
}

// Config configures a Machine.
type Config struct {
	Network  Network // ChainID is filled from the chain cache
	Contract string
	Timeout  time.Duration // Auth reply deadline; zero uses the correlator default
}

// Machine is the authentication state machine. It is the only writer of the
// session context.
type Machine struct {
	requester Requester
	session   *session.Writer
	chain     *session.ChainCache
	cfg       Config
	logger    *slog.Logger

	authMu sync.Mutex // serializes Auth

	mu       sync.Mutex
	state    State
	keys     *StaticKeys
	signer   Signer
	provider IdentityProvider
}

// NewMachine creates a Machine in the unauthenticated state.
func NewMachine(requester Requester, w *session.Writer, chain *session.ChainCache, cfg Config, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Machine{
		requester: requester,
		session:   w,
		chain:     chain,
		cfg:       cfg,
		logger:    logger,
		state:     StateUnauthenticated,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the read-only session context.
func (m *Machine) Session() *session.Context {
	return m.session.Context()
}

// Signer returns the active signer, or nil.
func (m *Machine) Signer() Signer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signer
}

// SetAuth replaces the identity source. Static keys discard any provider;
// a provider discards static keys and clears the cached account.
func (m *Machine) SetAuth(creds Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case creds.Keys != nil:
		keys := *creds.Keys
		m.keys = &keys
		m.provider = nil
	case creds.Provider != nil:
		m.provider = creds.Provider
		m.keys = nil
		m.session.ClearAccount()
	}
	if creds.Signer != nil {
		m.signer = creds.Signer
	}
}

// ResolveAccount returns the active account, resolving it if necessary, and
// makes it the session account. Session keys issued to another account are
// dropped.
func (m *Machine) ResolveAccount(ctx context.Context) (session.Account, error) {
	acct, err := m.resolve(ctx)
	if err != nil {
		return session.Account{}, err
	}
	m.session.Adopt(acct)
	return acct, nil
}

// resolve determines the account from the identity source without touching
// the session.
func (m *Machine) resolve(ctx context.Context) (session.Account, error) {
	m.mu.Lock()
	keys, provider := m.keys, m.provider
	m.mu.Unlock()

	if keys != nil {
		acct := session.Account{
			Name:          keys.Account,
			Permission:    keys.Permission,
			Authorization: keys.Account + "@" + keys.Permission,
			Source:        session.SourceStatic,
		}
		return acct, nil
	}

	if provider == nil {
		return session.Account{}, ErrNoIdentity
	}

	if acct, ok := m.session.Context().Account(); ok && acct.Source == session.SourceProvider {
		return acct, nil
	}

	chainID, err := m.chain.Get(ctx)
	if err != nil {
		return session.Account{}, fmt.Errorf("resolve chain id: %w", err)
	}

	network := m.cfg.Network
	network.ChainID = chainID

	acct, err := provider.Auth(ctx, network)
	if err != nil {
		return session.Account{}, fmt.Errorf("identity provider: %w", err)
	}
	acct.Source = session.SourceProvider

	m.logger.Info("account resolved", "account", acct.String(), "source", acct.Source)
	return acct, nil
}

// authReply is the payload of a successful auth event.
type authReply struct {
	Account string `json:"account"`
	Key1    string `json:"key1"`
	Key2    string `json:"key2"`
}

// Auth runs the handshake. creds, when non-nil, replaces the identity source
// first. Concurrent calls are serialized.
func (m *Machine) Auth(ctx context.Context, creds *Credentials) (session.Account, error) {
	m.authMu.Lock()
	defer m.authMu.Unlock()

	if creds != nil {
		m.SetAuth(*creds)
	}

	acct, err := m.authenticate(ctx)
	if err != nil {
		m.setState(StateFailed)
		metrics.AuthAttempts.WithLabelValues("failed").Inc()
		m.logger.Warn("authentication failed", "error", err)
		return session.Account{}, err
	}

	m.setState(StateAuthenticated)
	metrics.AuthAttempts.WithLabelValues("ok").Inc()
	m.logger.Info("authenticated", "account", acct.String())
	return acct, nil
}

func (m *Machine) authenticate(ctx context.Context) (session.Account, error) {
	m.setState(StateResolvingIdentity)

	acct, err := m.resolve(ctx)
	if err != nil {
		return session.Account{}, err
	}

	signer := m.Signer()
	if signer == nil {
		return session.Account{}, ErrNoSigner
	}

	m.setState(StateAwaitingChallenge)

	payload, err := wire.Marshal(map[string]any{
		"account":    acct.Name,
		"permission": acct.Permission,
		"nonce":      uuid.NewString(),
		"ts":         time.Now().UnixMilli(),
	})
	if err != nil {
		return session.Account{}, fmt.Errorf("marshal validation payload: %w", err)
	}

	chainID, _ := m.chain.Cached()
	signed, err := signer.SignTx(ctx, SignRequest{
		Payload:  payload,
		Account:  acct,
		Intent:   IntentAuth,
		ChainID:  chainID,
		Contract: m.cfg.Contract,
	})
	if err != nil {
		return session.Account{}, fmt.Errorf("sign auth payload: %w", err)
	}

	reply, err := m.requester.Request(ctx, correlator.Request{
		Role:    connection.RolePrivate,
		ID:      uuid.NewString(),
		Timeout: m.cfg.Timeout,
		Payload: map[string]any{
			"event":      "auth",
			"account":    acct.Name,
			"permission": acct.Permission,
			"meta":       signed,
		},
		Namespace: AuthNamespace,
	})
	if err != nil {
		return session.Account{}, fmt.Errorf("auth request: %w", err)
	}

	var body authReply
	if err := reply.Decode(&body); err != nil {
		return session.Account{}, fmt.Errorf("parse auth reply: %w", err)
	}
	if body.Account != "" && body.Account != acct.Name {
		return session.Account{}, fmt.Errorf("%w: %s", ErrAccountChange, body.Account)
	}
	keys := session.Keys{Key1: body.Key1, Key2: body.Key2}
	if !keys.Valid() {
		return session.Account{}, ErrMissingKeys
	}

	m.session.Establish(acct, keys)
	return acct, nil
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	if prev != s {
		m.logger.Debug("auth state", "from", prev, "to", s)
	}
}
