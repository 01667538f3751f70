package influxdb

import "errors"

var (
	// ErrNotConnected is returned by HealthCheck after Close or when the
	// server stops answering pings.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
