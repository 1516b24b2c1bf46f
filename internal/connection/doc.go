// Package connection implements the Transport Registry and the
// Connection-State Aggregator.
//
// The Transport Registry:
//   - Owns one WebSocket channel per logical role (pub, priv, aux, ...)
//   - Sends, subscribes and unsubscribes per role
//   - Opens every channel concurrently, never reconnects on its own
//
// The Connection-State Aggregator:
//   - Consumes lifecycle events from every channel
//   - Re-emits open/close/error/message tagged with the channel role
//   - Emits a single ready event once every channel has connected once
package connection
