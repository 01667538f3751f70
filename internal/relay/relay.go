package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/stimulus/internal/infrastructure/mqtt"
	"github.com/nerrad567/stimulus/internal/router"
)

// Relay subscribes to a peripheral filter and republishes routed messages.
//
// Thread Safety: All methods are safe for concurrent use. Message handlers
// run on the MQTT client's callback goroutines.
type Relay struct {
	client   MQTTClient
	router   *router.Router
	filter   string
	qos      byte
	recorder Recorder

	received      atomic.Uint64
	relayed       atomic.Uint64
	ignored       atomic.Uint64
	malformed     atomic.Uint64
	publishErrors atomic.Uint64

	started  atomic.Bool
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the subset of the MQTT client the relay needs.
// Satisfied by *mqtt.Client and by test mocks.
type MQTTClient interface {
	// Subscribe registers a handler for a topic filter.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes a topic filter.
	Unsubscribe(topic string) error

	// Publish queues a message without waiting for the broker. done
	// receives the delivery result later, off the calling goroutine.
	Publish(topic string, payload []byte, qos byte, retained bool, done mqtt.PublishDone) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Recorder receives one call per routing decision.
// Satisfied by *influxdb.Client. Optional.
type Recorder interface {
	WriteRouteOutcome(outcome, device, peripheral string, payloadBytes int)
}

// Logger is the structured logger used by the relay.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a relay.
type Options struct {
	// Client is the MQTT client used to subscribe and publish.
	Client MQTTClient

	// Router decides what to publish for each inbound message.
	Router *router.Router

	// Filter is the subscription topic filter, e.g. dev/pcu/uuid/+/in/sw/+.
	Filter string

	// QoS is the subscription QoS (0, 1 or 2).
	QoS byte

	// Logger is optional.
	Logger Logger

	// Recorder is optional. If nil, routing decisions are not recorded.
	Recorder Recorder
}

// Metrics is a snapshot of relay counters for the API metrics endpoint.
type Metrics struct {
	Filter        string `json:"filter"`
	Received      uint64 `json:"received"`
	Relayed       uint64 `json:"relayed"`
	Ignored       uint64 `json:"ignored"`
	Malformed     uint64 `json:"malformed"`
	PublishErrors uint64 `json:"publish_errors"`
}

// New creates a relay. Call Start to subscribe.
func New(opts Options) (*Relay, error) {
	if opts.Client == nil {
		return nil, ErrClientRequired
	}
	if opts.Router == nil {
		return nil, ErrRouterRequired
	}
	if opts.Filter == "" {
		return nil, ErrFilterRequired
	}

	return &Relay{
		client:   opts.Client,
		router:   opts.Router,
		filter:   opts.Filter,
		qos:      opts.QoS,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}, nil
}

// Start subscribes to the relay filter. Messages are handled until Stop.
func (r *Relay) Start(_ context.Context) error {
	if err := r.client.Subscribe(r.filter, r.qos, r.handleMessage); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.filter, err)
	}
	r.started.Store(true)

	rule := r.router.Rule()
	r.logInfo("relay started",
		"filter", r.filter,
		"qos", r.qos,
		"source", rule.Source,
		"target", rule.Target)

	return nil
}

// Stop unsubscribes from the relay filter. Safe to call more than once.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		if !r.started.Load() {
			return
		}
		if r.client.IsConnected() {
			if err := r.client.Unsubscribe(r.filter); err != nil {
				r.logError("failed to unsubscribe", err)
			}
		}
		r.logInfo("relay stopped",
			"received", r.received.Load(),
			"relayed", r.relayed.Load())
	})
}

// Filter returns the subscription filter.
func (r *Relay) Filter() string {
	return r.filter
}

// handleMessage evaluates one inbound message and publishes the result.
// It runs on the MQTT delivery goroutine and never waits on the broker.
// Publish failures are logged and counted, never retried.
func (r *Relay) handleMessage(msg mqtt.Message) error {
	r.received.Add(1)

	d := r.router.Evaluate(msg.Topic, msg.Payload)

	if d.Outcome != router.OutcomeMalformed {
		r.logInfo("message received",
			"topic", msg.Topic,
			"qos", msg.QoS,
			"payload", string(msg.Payload))
	}

	switch d.Outcome {
	case router.OutcomeRelayed:
		r.relayed.Add(1)
		out := d.Output.Topic
		done := func(err error) {
			if err != nil {
				r.publishFailed(out, err)
				return
			}
			r.logDebug("message relayed",
				"topic", msg.Topic,
				"output_topic", out,
				"qos", msg.QoS)
		}
		if err := r.client.Publish(out, d.Output.Payload, msg.QoS, false, done); err != nil {
			r.publishFailed(out, err)
		}
	case router.OutcomeIgnored:
		r.ignored.Add(1)
	default:
		r.malformed.Add(1)
	}

	if r.recorder != nil {
		r.recorder.WriteRouteOutcome(d.Outcome.String(), d.Fields.Device, d.Fields.Peripheral, len(msg.Payload))
	}

	return nil
}

func (r *Relay) publishFailed(topic string, err error) {
	r.publishErrors.Add(1)
	r.logError("failed to publish relayed message", fmt.Errorf("%s: %w", topic, err))
}

// GetMetrics returns current relay counters.
func (r *Relay) GetMetrics() Metrics {
	return Metrics{
		Filter:        r.filter,
		Received:      r.received.Load(),
		Relayed:       r.relayed.Load(),
		Ignored:       r.ignored.Load(),
		Malformed:     r.malformed.Load(),
		PublishErrors: r.publishErrors.Load(),
	}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

// logInfo logs an info message if logger is set.
func (r *Relay) logInfo(msg string, keysAndValues ...any) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (r *Relay) logError(msg string, err error) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (r *Relay) logDebug(msg string, keysAndValues ...any) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
