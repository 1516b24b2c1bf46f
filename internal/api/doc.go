// Package api provides the REST client for network metadata.
//
// Endpoints:
//   - POST /v1/chain/get_info   chain id and head block
//
// The client does not retry by default; WithRetries enables exponential
// backoff on 5xx and 429 responses.
package api
