package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/finex-ws/internal/session"
	"github.com/rickgao/finex-ws/internal/wire"
)

// Errors
var (
	ErrMissingUUID   = errors.New("verify: uuid is required")
	ErrNoSessionKeys = errors.New("no session keys, authenticate first")
	ErrInvalidOrder  = errors.New("invalid order")
)

// Side is the order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Type is the order type.
type Type string

const (
	TypeLimit  Type = "limit"
	TypeMarket Type = "market"
)

// Params are the caller-supplied order fields.
type Params struct {
	Symbol string
	Side   Side
	Price  decimal.Decimal
	Size   decimal.Decimal
	Type   Type // Defaults to limit
	Flags  int
}

// Order is a client-side order ready to serialize.
type Order struct {
	ID        uuid.UUID
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Size      decimal.Decimal
	Type      Type
	Flags     int
	Account   session.Account
	Keys      session.Keys
	CreatedAt time.Time
}

// View is the locally reconstructed order returned to callers.
type View struct {
	ID        string          `json:"id"`
	Account   string          `json:"account"`
	Symbol    string          `json:"symbol,omitempty"`
	Side      Side            `json:"side"`
	Type      Type            `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Flags     int             `json:"flags,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// orderWire is the body of an "on" command.
type orderWire struct {
	ID         string          `json:"id"`
	Account    string          `json:"account"`
	Permission string          `json:"permission"`
	Symbol     string          `json:"symbol,omitempty"`
	Side       Side            `json:"side"`
	Type       Type            `json:"type"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Flags      int             `json:"flags,omitempty"`
	Key1       string          `json:"key1"`
	Key2       string          `json:"key2"`
	Timestamp  int64           `json:"ts"`
	Meta       wire.RawMessage `json:"meta,omitempty"`
}

// New validates p and builds an Order for acct using keys.
func New(p Params, acct session.Account, keys session.Keys) (Order, error) {
	if !keys.Valid() {
		return Order{}, ErrNoSessionKeys
	}

	side := Side(strings.ToLower(string(p.Side)))
	if side != SideBuy && side != SideSell {
		return Order{}, fmt.Errorf("%w: side %q", ErrInvalidOrder, p.Side)
	}

	typ := p.Type
	if typ == "" {
		typ = TypeLimit
	}
	if typ != TypeLimit && typ != TypeMarket {
		return Order{}, fmt.Errorf("%w: type %q", ErrInvalidOrder, p.Type)
	}

	if !p.Size.IsPositive() {
		return Order{}, fmt.Errorf("%w: size must be positive", ErrInvalidOrder)
	}
	if typ == TypeLimit && !p.Price.IsPositive() {
		return Order{}, fmt.Errorf("%w: limit price must be positive", ErrInvalidOrder)
	}

	return Order{
		ID:        uuid.New(),
		Symbol:    p.Symbol,
		Side:      side,
		Price:     p.Price,
		Size:      p.Size,
		Type:      typ,
		Flags:     p.Flags,
		Account:   acct,
		Keys:      keys,
		CreatedAt: time.Now(),
	}, nil
}

func (o Order) wire(meta wire.RawMessage) orderWire {
	return orderWire{
		ID:         o.ID.String(),
		Account:    o.Account.Name,
		Permission: o.Account.Permission,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Type:       o.Type,
		Price:      o.Price,
		Size:       o.Size,
		Flags:      o.Flags,
		Key1:       o.Keys.Key1,
		Key2:       o.Keys.Key2,
		Timestamp:  o.CreatedAt.UnixMilli(),
		Meta:       meta,
	}
}

// Serialize returns the unsigned wire body that is handed to the signer.
func (o Order) Serialize() ([]byte, error) {
	data, err := wire.Marshal(o.wire(nil))
	if err != nil {
		return nil, fmt.Errorf("serialize order: %w", err)
	}
	return data, nil
}

// View returns the caller-facing view of o.
func (o Order) View() View {
	return View{
		ID:        o.ID.String(),
		Account:   o.Account.Name,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Type:      o.Type,
		Price:     o.Price,
		Size:      o.Size,
		Flags:     o.Flags,
		CreatedAt: o.CreatedAt,
	}
}
