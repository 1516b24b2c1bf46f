package venue

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/finex-ws/internal/auth"
	"github.com/rickgao/finex-ws/internal/connection"
	"github.com/rickgao/finex-ws/internal/order"
	"github.com/rickgao/finex-ws/internal/router"
	"github.com/rickgao/finex-ws/internal/wire"
)

// venueServer serves /pub, /priv and /aux. The public channel pushes chain
// info on connect, the private channel answers auth events, and the
// auxiliary channel answers ct requests.
type venueServer struct {
	*httptest.Server
	priv chan []byte
}

func newVenueServer(t *testing.T) *venueServer {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	vs := &venueServer{priv: make(chan []byte, 16)}

	mux := http.NewServeMux()
	handle := func(path string, fn func(*websocket.Conn)) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				t.Logf("upgrade error: %v", err)
				return
			}
			defer conn.Close()
			fn(conn)
		})
	}

	handle("/pub", func(conn *websocket.Conn) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`[0,"ci",{"chain_id":"chain-abc"}]`)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	handle("/priv", func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			vs.priv <- data

			var frame map[string]any
			if wire.Unmarshal(data, &frame) == nil && frame["event"] == "auth" {
				reply := `{"event":"auth","account":"alice","key1":"k1","key2":"k2"}`
				if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
					return
				}
			}
		}
	})

	handle("/aux", func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env wire.Envelope
			if err := env.UnmarshalJSON(data); err != nil || env.Opcode != wire.OpVerifyTx {
				continue
			}
			reply := `[0,"ct","` + env.ID + `",{"valid":true}]`
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	})

	vs.Server = httptest.NewServer(mux)
	return vs
}

func (vs *venueServer) options() Options {
	base := "ws" + strings.TrimPrefix(vs.URL, "http")
	return Options{
		Transports: map[connection.Role]string{
			connection.RolePublic:  base + "/pub",
			connection.RolePrivate: base + "/priv",
			connection.RoleAux:     base + "/aux",
		},
		Connection: connection.ClientConfig{
			PingTimeout:  30 * time.Second,
			PingInterval: 10 * time.Second,
			WriteTimeout: 5 * time.Second,
			BufferSize:   100,
		},
		Contract:       "exchange",
		RequestTimeout: 2 * time.Second,
		VerifyTimeout:  2 * time.Second,
	}
}

// nextPriv returns the next private frame accepted by match.
func (vs *venueServer) nextPriv(t *testing.T, match func([]byte) bool) []byte {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-vs.priv:
			if match(data) {
				return data
			}
		case <-deadline:
			t.Fatal("timeout waiting for private frame")
			return nil
		}
	}
}

func testCredentials(t *testing.T) *auth.Credentials {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &auth.Credentials{
		Keys:   &auth.StaticKeys{Account: "alice", Permission: "active"},
		Signer: auth.NewKeySigner(key),
	}
}

func startClient(t *testing.T, vs *venueServer) (*Client, <-chan struct{}) {
	t.Helper()
	c := New(vs.options())
	t.Cleanup(func() { c.Close() })

	chainInfo := make(chan struct{}, 1)
	c.On(wire.PushChainInfo, func(any) {
		select {
		case chainInfo <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))
	return c, chainInfo
}

func waitChainInfo(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for chain info")
	}
}

func TestClient_EndToEnd(t *testing.T) {
	vs := newVenueServer(t)
	defer vs.Close()

	var readyCount atomic.Int32
	c := New(vs.options())
	defer c.Close()
	c.On(connection.EventReady, func(any) { readyCount.Add(1) })

	chainInfo := make(chan struct{}, 1)
	c.On(wire.PushChainInfo, func(any) {
		select {
		case chainInfo <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, c.Start(ctx))
	waitChainInfo(t, chainInfo)

	chainID, err := c.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chain-abc", chainID)

	// Authenticate with static keys.
	acct, err := c.Auth(ctx, testCredentials(t))
	require.NoError(t, err)
	assert.Equal(t, "alice", acct.Name)
	assert.Equal(t, auth.StateAuthenticated, c.Stats().AuthState)

	keys, ok := c.Session().Keys()
	require.True(t, ok)
	assert.Equal(t, "k1", keys.Key1)
	assert.Equal(t, "k2", keys.Key2)

	authFrame := vs.nextPriv(t, func(b []byte) bool { return strings.Contains(string(b), `"event":"auth"`) })
	var authMsg map[string]any
	require.NoError(t, wire.Unmarshal(authFrame, &authMsg))
	assert.Equal(t, "alice", authMsg["account"])
	assert.Equal(t, "active", authMsg["permission"])
	assert.NotNil(t, authMsg["meta"])

	// Place is fire-and-forget on the private channel.
	res, err := c.Place(ctx, order.Params{
		Symbol: "EOS.USD",
		Side:   order.SideBuy,
		Price:  decimal.RequireFromString("1.0"),
		Size:   decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, wire.OpNewOrder, res.Payload.Opcode)

	view, ok := res.Data.(order.View)
	require.True(t, ok)
	assert.Equal(t, order.SideBuy, view.Side)
	assert.True(t, view.Price.Equal(decimal.NewFromInt(1)))

	placeFrame := vs.nextPriv(t, func(b []byte) bool { return strings.HasPrefix(string(b), `[0,"on",null,`) })
	var env wire.Envelope
	require.NoError(t, env.UnmarshalJSON(placeFrame))
	var body map[string]any
	require.NoError(t, wire.Unmarshal(env.Body.(wire.RawMessage), &body))
	assert.Equal(t, view.ID, body["id"])
	assert.Equal(t, "k1", body["key1"])
	assert.NotNil(t, body["meta"])

	// VerifyTx resolves on the ct-<uuid> namespace.
	reply, err := c.VerifyTx(ctx, map[string]any{"sig": "x"}, "u-1", order.VerifyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ct-u-1", reply.Namespace)
	assert.Equal(t, router.KindReply, reply.Kind)

	stats := c.Stats()
	assert.True(t, stats.Ready)
	assert.Equal(t, 0, stats.Pending)
	assert.True(t, stats.Connected[connection.RoleAux])
	assert.Eventually(t, func() bool { return c.Stats().Router.Resolved >= 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), readyCount.Load())
}

func TestClient_HookFiresOnChainInfo(t *testing.T) {
	vs := newVenueServer(t)
	defer vs.Close()

	c := New(vs.options())
	defer c.Close()

	hook, err := c.Hook("onChainInfo")
	require.NoError(t, err)

	got := make(chan router.Message, 1)
	hook.Add(func(m router.Message) { got <- m })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))

	select {
	case m := <-got:
		assert.Equal(t, "ci", m.Type)
		assert.Equal(t, connection.RolePublic, m.Role)
	case <-time.After(2 * time.Second):
		t.Fatal("onChainInfo hook did not fire")
	}

	_, err = c.Hook("onUnknown")
	assert.ErrorIs(t, err, router.ErrUnknownHook)
}

func TestClient_CancelAndVerifyValidation(t *testing.T) {
	vs := newVenueServer(t)
	defer vs.Close()

	c, _ := startClient(t, vs)
	ctx := context.Background()

	res, err := c.Cancel(ctx, "order-9")
	require.NoError(t, err)
	assert.Equal(t, wire.OpCancelOrder, res.Payload.Opcode)

	frame := vs.nextPriv(t, func(b []byte) bool { return strings.HasPrefix(string(b), `[0,"oc"`) })
	assert.JSONEq(t, `[0,"oc",null,{"id":"order-9"}]`, string(frame))

	_, err = c.VerifyTx(ctx, nil, "", order.VerifyOptions{})
	assert.ErrorIs(t, err, order.ErrMissingUUID)
	assert.Equal(t, 0, c.Stats().Pending)
}

func TestClient_PlaceBeforeAuth(t *testing.T) {
	vs := newVenueServer(t)
	defer vs.Close()

	c, chainInfo := startClient(t, vs)
	waitChainInfo(t, chainInfo)

	_, err := c.Place(context.Background(), order.Params{
		Side:  order.SideSell,
		Price: decimal.NewFromInt(2),
		Size:  decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, auth.ErrNoIdentity)
}

func TestClient_SendUnknownRole(t *testing.T) {
	c := New(Options{Transports: map[connection.Role]string{}})
	defer c.Close()

	err := c.Send("nope", map[string]string{"a": "b"})
	assert.ErrorIs(t, err, connection.ErrMissingTransport)
}

func TestClient_OpenAfterClose(t *testing.T) {
	c := New(Options{Transports: map[connection.Role]string{}})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err := c.Open(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestClient_StartContextExpires(t *testing.T) {
	c := New(Options{Transports: map[connection.Role]string{
		connection.RolePublic: "ws://127.0.0.1:1/unreachable",
	}})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	assert.Error(t, c.Start(ctx))
}
