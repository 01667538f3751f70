// Package api implements the operational HTTP surface of the relay.
//
// This package provides:
//   - GET /api/v1/health: 200 when the MQTT connection is up, 503 otherwise
//   - GET /api/v1/metrics: uptime, Go runtime stats, MQTT state and relay counters
//   - Middleware stack (request ID, logging, recovery)
//
// The server is optional and disabled by default. It never touches the
// relay's message path; it only reads connection state and counters.
package api
