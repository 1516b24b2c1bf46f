package connection

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEndpoints() map[Role]string {
	return map[Role]string{
		RolePublic:  "ws://localhost/pub",
		RolePrivate: "ws://localhost/priv",
		RoleAux:     "ws://localhost/aux",
	}
}

func TestRegistry_Roles(t *testing.T) {
	r := NewRegistry(testEndpoints(), DefaultClientConfig(), nil, WithClientFactory(newFakeClient))

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []Role{RoleAux, RolePrivate, RolePublic}, r.Roles())

	c, err := r.Client(RolePrivate)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost/priv", c.(*fakeClient).cfg.URL)
}

func TestRegistry_MissingTransport(t *testing.T) {
	r := NewRegistry(map[Role]string{RolePublic: "ws://localhost/pub"}, DefaultClientConfig(), nil,
		WithClientFactory(newFakeClient))

	_, err := r.Client(RolePrivate)
	assert.ErrorIs(t, err, ErrMissingTransport)

	err = r.Send(RolePrivate, map[string]any{"event": "auth"})
	assert.ErrorIs(t, err, ErrMissingTransport)

	err = r.Subscribe(RoleAux, "book", nil)
	assert.ErrorIs(t, err, ErrMissingTransport)

	assert.False(t, r.IsConnected(RoleAux))

	pub, _ := r.Client(RolePublic)
	assert.Empty(t, pub.(*fakeClient).Sent(), "no network action on missing transport")
}

func TestRegistry_OpenAndSend(t *testing.T) {
	r := NewRegistry(testEndpoints(), DefaultClientConfig(), nil, WithClientFactory(newFakeClient))

	require.NoError(t, r.Open(context.Background()))
	for _, role := range r.Roles() {
		assert.True(t, r.IsConnected(role), "role %s", role)
	}

	require.NoError(t, r.Send(RolePrivate, []byte(`raw`)))
	require.NoError(t, r.Send(RolePrivate, []any{0, "oc", nil, map[string]string{"id": "x"}}))

	c, _ := r.Client(RolePrivate)
	sent := c.(*fakeClient).Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, `raw`, string(sent[0]))
	assert.JSONEq(t, `[0,"oc",null,{"id":"x"}]`, string(sent[1]))

	require.NoError(t, r.Close())
	assert.False(t, r.IsConnected(RolePrivate))
}

func TestRegistry_SendNotConnected(t *testing.T) {
	r := NewRegistry(testEndpoints(), DefaultClientConfig(), nil, WithClientFactory(newFakeClient))

	err := r.Send(RolePublic, []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestRegistry_OpenFailure(t *testing.T) {
	boom := errors.New("boom")
	factory := func(role Role, cfg ClientConfig, _ *slog.Logger) Client {
		c := newFakeClient(role, cfg, nil).(*fakeClient)
		if role == RoleAux {
			c.connectErr = boom
		}
		return c
	}

	r := NewRegistry(testEndpoints(), DefaultClientConfig(), nil, WithClientFactory(factory))

	err := r.Open(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "open aux")
}
