package venue

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/finex-ws/internal/config"
	"github.com/rickgao/finex-ws/internal/connection"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Transports: map[string]string{"pub": "wss://a/pub", "priv": "wss://a/priv"},
		Network:    config.NetworkConfig{Host: "rpc.example.com", ChainID: "abc"},
		Exchange:   config.ExchangeConfig{Contract: "dex", VerifyTimeout: 3 * time.Second},
	}
	cfg.ApplyDefaults()

	opts := OptionsFromConfig(cfg, nil)

	assert.Equal(t, "wss://a/priv", opts.Transports[connection.RolePrivate])
	assert.Len(t, opts.Transports, 2)
	assert.Equal(t, config.DefaultPingInterval, opts.Connection.PingInterval)
	assert.Equal(t, config.DefaultChannelBuffer, opts.Connection.BufferSize)
	assert.Equal(t, "abc", opts.Network.ChainID)
	assert.Equal(t, config.DefaultBlockchain, opts.Network.Blockchain)
	assert.Equal(t, "dex", opts.Contract)
	assert.Equal(t, 3*time.Second, opts.VerifyTimeout)
	assert.Equal(t, config.DefaultRequestTimeout, opts.RequestTimeout)
	assert.Nil(t, opts.ChainFetch)
}

func TestOptionsFromConfig_ChainFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chain/get_info", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"chain_id":"from-rpc","head_block_num":7}`))
	}))
	defer server.Close()

	cfg := &config.Config{
		Transports: map[string]string{"pub": "wss://a/pub"},
		Network:    config.NetworkConfig{RPCURL: server.URL},
	}
	cfg.ApplyDefaults()

	opts := OptionsFromConfig(cfg, nil)
	require.NotNil(t, opts.ChainFetch)

	c := New(opts)
	defer c.Close()

	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-rpc", id)
}

func TestStaticCredentials(t *testing.T) {
	creds, err := StaticCredentials(config.AuthConfig{})
	require.NoError(t, err)
	assert.Nil(t, creds)

	_, err = StaticCredentials(config.AuthConfig{Account: "alice", PrivateKeyPath: "/nonexistent/key.pem"})
	assert.Error(t, err)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0600))

	creds, err = StaticCredentials(config.AuthConfig{Account: "alice", Permission: "active", PrivateKeyPath: path})
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "alice", creds.Keys.Account)
	assert.Equal(t, "active", creds.Keys.Permission)
	assert.NotNil(t, creds.Signer)
}
