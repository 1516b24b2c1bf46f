// Package session holds the active account, the session keys issued after
// authentication, and the cached chain id.
//
// Context is readable from anywhere. Only the holder of the Writer returned by
// NewContext can change it.
package session
