package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/rickgao/finex-ws/internal/wire"
)

// KeySigner signs transactions with a local RSA key using RSA-PSS.
type KeySigner struct {
	key *rsa.PrivateKey
	now func() time.Time
}

// signedTx is one element of the signed transaction array.
type signedTx struct {
	Authorization string `json:"authorization"`
	Intent        string `json:"intent"`
	ChainID       string `json:"chain_id,omitempty"`
	Contract      string `json:"contract"`
	Timestamp     int64  `json:"ts"`
	Signature     string `json:"signature"`
}

// NewKeySigner creates a KeySigner for key.
func NewKeySigner(key *rsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, now: time.Now}
}

// LoadKeySigner loads an RSA key from a PEM file and wraps it in a KeySigner.
func LoadKeySigner(privateKeyPath string) (*KeySigner, error) {
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	key, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	return NewKeySigner(key), nil
}

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	// Try PKCS#8 first (newer format)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	// Fall back to PKCS#1 (older format)
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return rsaKey, nil
}

// SignTx signs ts + intent + chain id + contract + payload and returns a
// one-element signed transaction array.
func (s *KeySigner) SignTx(ctx context.Context, req SignRequest) (wire.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Account.IsZero() {
		return nil, fmt.Errorf("sign %s: %w", req.Intent, ErrNoIdentity)
	}

	ts := s.now().UnixMilli()
	hashed := signingDigest(ts, req)

	signature, err := rsa.SignPSS(
		rand.Reader,
		s.key,
		crypto.SHA256,
		hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash},
	)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	tx := []signedTx{{
		Authorization: req.Account.String(),
		Intent:        req.Intent,
		ChainID:       req.ChainID,
		Contract:      req.Contract,
		Timestamp:     ts,
		Signature:     base64.StdEncoding.EncodeToString(signature),
	}}

	data, err := wire.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("marshal signed tx: %w", err)
	}
	return data, nil
}

// Verify checks a signature produced by SignTx.
func (s *KeySigner) Verify(req SignRequest, ts int64, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	hashed := signingDigest(ts, req)
	return rsa.VerifyPSS(&s.key.PublicKey, crypto.SHA256, hashed[:], sig,
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
}

func signingDigest(ts int64, req SignRequest) [sha256.Size]byte {
	message := fmt.Sprintf("%d%s%s%s%s", ts, req.Intent, req.ChainID, req.Contract, req.Payload)
	return sha256.Sum256([]byte(message))
}
