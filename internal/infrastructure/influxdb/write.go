package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and tag names for relay decisions.
const (
	measurementRoutes = "relay_routes"

	tagOutcome    = "outcome"
	tagDevice     = "device"
	tagPeripheral = "peripheral"

	fieldPayloadBytes = "payload_bytes"
)

// WriteRouteOutcome records one routing decision.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Malformed topics have no device or peripheral, so those tags are
// omitted rather than written empty.
//
// Example:
//
//	client.WriteRouteOutcome("relayed", "pcu", "sw", 1)
func (c *Client) WriteRouteOutcome(outcome, device, peripheral string, payloadBytes int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(routePoint(outcome, device, peripheral, payloadBytes, time.Now()))
}

// routePoint builds the relay_routes point for one decision.
func routePoint(outcome, device, peripheral string, payloadBytes int, ts time.Time) *write.Point {
	tags := map[string]string{tagOutcome: outcome}
	if device != "" {
		tags[tagDevice] = device
	}
	if peripheral != "" {
		tags[tagPeripheral] = peripheral
	}

	return write.NewPoint(
		measurementRoutes,
		tags,
		map[string]interface{}{
			fieldPayloadBytes: payloadBytes,
		},
		ts,
	)
}
