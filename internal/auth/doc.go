// Package auth drives the authentication handshake that yields session keys.
//
// An account is resolved either from static keys in configuration or from an
// interactive IdentityProvider. The Signer then signs a validation payload,
// which is sent as an "auth" event on the private channel; the reply carries
// key1/key2 for later order commands.
package auth
