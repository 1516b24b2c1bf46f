package auth

import (
	"context"

	"github.com/rickgao/finex-ws/internal/session"
	"github.com/rickgao/finex-ws/internal/wire"
)

// Signing intents.
const (
	IntentAuth  = "auth"
	IntentPlace = "place"
)

// SignRequest is a payload to be signed for an account.
type SignRequest struct {
	Payload  []byte
	Account  session.Account
	Intent   string
	ChainID  string
	Contract string
}

// Signer produces the signed transaction embedded as "meta" in commands.
type Signer interface {
	SignTx(ctx context.Context, req SignRequest) (wire.RawMessage, error)
}

// Network describes the chain an IdentityProvider authorizes against.
type Network struct {
	Blockchain string `json:"blockchain"`
	Protocol   string `json:"protocol"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	ChainID    string `json:"chainId"`
}

// IdentityProvider resolves an account through an interactive authorization.
type IdentityProvider interface {
	Auth(ctx context.Context, network Network) (session.Account, error)
}

// StaticKeys identify an account from configuration.
type StaticKeys struct {
	Account    string
	Permission string
}

// Credentials select the identity source for Auth. Keys take precedence over
// Provider when both are set.
type Credentials struct {
	Keys     *StaticKeys
	Signer   Signer
	Provider IdentityProvider
}
