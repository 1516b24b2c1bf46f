// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Channel connection state and message rates
//   - Router classification counts
//   - Request/response correlation latency and outcomes
//   - Order commands and auth attempts
//   - Journal batch writes
package metrics
