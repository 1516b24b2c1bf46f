package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/finex-ws/internal/auth"
	"github.com/rickgao/finex-ws/internal/connection"
	"github.com/rickgao/finex-ws/internal/correlator"
	"github.com/rickgao/finex-ws/internal/metrics"
	"github.com/rickgao/finex-ws/internal/router"
	"github.com/rickgao/finex-ws/internal/session"
	"github.com/rickgao/finex-ws/internal/wire"
)

// Authenticator supplies the account, session keys and signer.
type Authenticator interface {
	ResolveAccount(ctx context.Context) (session.Account, error)
	Session() *session.Context
	Signer() auth.Signer
}

// Sender writes a message on a channel role.
type Sender interface {
	Send(role connection.Role, msg any) error
}

// Command is a sent command, as offered to a Recorder.
type Command struct {
	Opcode  string
	Role    connection.Role
	ID      string // Envelope correlation id, empty for fire-and-forget
	OrderID string
	Account string
	Payload []byte
	SentAt  time.Time
}

// Recorder receives every command the pipeline sends.
type Recorder interface {
	Record(cmd Command)
}

// Config configures a Pipeline.
type Config struct {
	Contract      string
	VerifyTimeout time.Duration // Zero uses the correlator default
}

// Result is the outcome of Place or Cancel.
type Result struct {
	Payload wire.Envelope
	Data    any
}

// VerifyOptions override per-call VerifyTx settings.
type VerifyOptions struct {
	RequestTimeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder records every sent command.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// Pipeline publishes order commands.
type Pipeline struct {
	auth      Authenticator
	chain     *session.ChainCache
	sender    Sender
	requester auth.Requester
	cfg       Config
	recorder  Recorder
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(a Authenticator, chain *session.ChainCache, sender Sender, requester auth.Requester, cfg Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		auth:      a,
		chain:     chain,
		sender:    sender,
		requester: requester,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Place signs and publishes a new order. No reply is awaited.
func (p *Pipeline) Place(ctx context.Context, params Params) (Result, error) {
	acct, err := p.auth.ResolveAccount(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("resolve account: %w", err)
	}

	chainID, err := p.chain.Get(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("resolve chain id: %w", err)
	}

	keys, _ := p.auth.Session().Keys()
	o, err := New(params, acct, keys)
	if err != nil {
		return Result{}, err
	}

	payload, err := o.Serialize()
	if err != nil {
		return Result{}, err
	}

	signer := p.auth.Signer()
	if signer == nil {
		return Result{}, auth.ErrNoSigner
	}
	signed, err := signer.SignTx(ctx, auth.SignRequest{
		Payload:  payload,
		Account:  acct,
		Intent:   auth.IntentPlace,
		ChainID:  chainID,
		Contract: p.cfg.Contract,
	})
	if err != nil {
		return Result{}, fmt.Errorf("sign order: %w", err)
	}

	env := wire.NewEnvelope(wire.OpNewOrder, "", o.wire(signed))
	if err := p.send(connection.RolePrivate, env, o.ID.String(), acct.Name); err != nil {
		return Result{}, err
	}

	p.logger.Info("order placed",
		"id", o.ID,
		"side", o.Side,
		"price", o.Price.String(),
		"size", o.Size.String(),
	)

	return Result{Payload: env, Data: o.View()}, nil
}

// Cancel publishes a cancel for order id. No reply is awaited.
func (p *Pipeline) Cancel(ctx context.Context, id string) (Result, error) {
	if id == "" {
		return Result{}, fmt.Errorf("%w: cancel requires an order id", ErrInvalidOrder)
	}

	body := map[string]string{"id": id}
	env := wire.NewEnvelope(wire.OpCancelOrder, "", body)

	var account string
	if acct, ok := p.auth.Session().Account(); ok {
		account = acct.Name
	}
	if err := p.send(connection.RolePrivate, env, id, account); err != nil {
		return Result{}, err
	}

	p.logger.Info("order cancel sent", "id", id)
	return Result{Payload: env, Data: body}, nil
}

// VerifyTx asks the auxiliary channel to verify a signed transaction and
// waits for the reply on namespace "ct-<uuid>".
func (p *Pipeline) VerifyTx(ctx context.Context, meta any, uuid string, opts VerifyOptions) (router.Message, error) {
	if uuid == "" {
		return router.Message{}, ErrMissingUUID
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = p.cfg.VerifyTimeout
	}

	env := wire.NewEnvelope(wire.OpVerifyTx, uuid, map[string]any{"meta": meta})

	reply, err := p.requester.Request(ctx, correlator.Request{
		Role:      connection.RoleAux,
		ID:        uuid,
		Timeout:   timeout,
		Payload:   env,
		Namespace: wire.OpVerifyTx + "-" + uuid,
		OnSent: func() {
			metrics.CommandsSent.WithLabelValues(wire.OpVerifyTx).Inc()
			p.record(connection.RoleAux, env, "", "")
		},
	})
	if err != nil {
		return router.Message{}, fmt.Errorf("verify tx %s: %w", uuid, err)
	}
	return reply, nil
}

func (p *Pipeline) send(role connection.Role, env wire.Envelope, orderID, account string) error {
	if err := p.sender.Send(role, env); err != nil {
		return fmt.Errorf("send %s: %w", env.Opcode, err)
	}
	metrics.CommandsSent.WithLabelValues(env.Opcode).Inc()
	p.record(role, env, orderID, account)
	return nil
}

func (p *Pipeline) record(role connection.Role, env wire.Envelope, orderID, account string) {
	if p.recorder == nil {
		return
	}

	payload, err := wire.Marshal(env)
	if err != nil {
		p.logger.Warn("failed to encode command for journal", "opcode", env.Opcode, "error", err)
		return
	}

	p.recorder.Record(Command{
		Opcode:  env.Opcode,
		Role:    role,
		ID:      env.ID,
		OrderID: orderID,
		Account: account,
		Payload: payload,
		SentAt:  time.Now(),
	})
}
