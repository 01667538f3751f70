package relay

import "errors"

// Domain errors for the relay package.
var (
	// ErrClientRequired is returned by New when no MQTT client is given.
	ErrClientRequired = errors.New("relay: MQTT client is required")

	// ErrRouterRequired is returned by New when no router is given.
	ErrRouterRequired = errors.New("relay: router is required")

	// ErrFilterRequired is returned by New when the subscription filter is empty.
	ErrFilterRequired = errors.New("relay: subscription filter is required")

	// ErrConnectionLost is returned when the broker connection drops and
	// the client will not reconnect.
	ErrConnectionLost = errors.New("relay: connection to broker lost")
)
