package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/stimulus/internal/infrastructure/config"
)

// Client is the relay's broker session, built on paho.mqtt.golang.
//
// It remembers its subscriptions and restores them after paho reconnects.
// Handler panics are recovered and logged. Publishes never block the
// caller on the broker. Safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	// connected is cleared by Close and by paho's connection-lost callback.
	connMu    sync.RWMutex
	connected bool

	sessions atomic.Uint64

	callbackMu   sync.RWMutex
	onReconnect  func()
	onDisconnect func(err error)

	loggerMu sync.RWMutex
	logger   Logger

	// pending counts publishes whose acknowledgement is still awaited.
	pending sync.WaitGroup
}

// Logger receives handler failures and resubscribe errors.
// *logging.Logger and *slog.Logger satisfy it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Message is an inbound MQTT message as delivered to a MessageHandler.
// Payload is the library's buffer; handlers must not modify it.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// MessageHandler handles one inbound message. It runs on the delivery
// goroutine (see Subscribe). A returned error is logged; the message is
// acknowledged either way.
type MessageHandler func(msg Message) error

// Connect opens a session with the broker in cfg.Broker and waits up to
// ten seconds for it. When cfg.StatusTopic is set the broker is also given
// an offline Last Will, and an online status is published on every
// session.
//
// With cfg.Reconnect.AutoReconnect paho keeps redialling after a lost
// connection and the client resubscribes; otherwise a lost connection is
// final and is reported through SetOnDisconnect.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg)

	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		// With connect retry enabled paho keeps dialling in the background.
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: no CONNACK after %v", ErrConnectionFailed, brokerURL(cfg.Broker), defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg.Broker), err)
	}

	// paho runs the OnConnect handler on its own goroutine, possibly after
	// this point, so the state is set here as well.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// handleConnect runs for every session paho establishes, including the
// first one, on a goroutine of its own.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()
	c.publishStatus(statusOnline, "")

	if c.sessions.Add(1) == 1 {
		return
	}

	c.callbackMu.RLock()
	callback := c.onReconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions resubscribes every tracked filter. The clean
// session means the broker forgot them when the connection dropped.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		if token.WaitTimeout(defaultPublishTimeout) && token.Error() == nil {
			continue
		}
		if logger := c.getLogger(); logger != nil {
			logger.Error("resubscribe failed", "filter", sub.topic, "error", token.Error())
		}
	}
}

// publishStatus publishes a retained status message if a status topic is
// configured. It returns the token, or nil when nothing was published.
func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	if c.cfg.StatusTopic == "" || c.client == nil {
		return nil
	}
	payload := buildStatusPayload(c.cfg.Broker.ClientID, status, reason)
	return c.client.Publish(c.cfg.StatusTopic, byte(c.cfg.QoS), true, payload)
}

// Close publishes the offline status when a status topic is configured,
// disconnects, and then waits until every PublishDone callback has run.
// Safe on a zero Client and after the connection was lost.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		if token := c.publishStatus(statusOffline, reasonGracefulShutdown); token != nil {
			token.WaitTimeout(defaultPublishTimeout)
		}
	}

	// Publish checks connected under connMu, so no new acknowledgement
	// waits start once this is cleared.
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.pending.Wait()

	return nil
}

// HealthCheck returns ErrNotConnected unless a session is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether a broker session is currently up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnReconnect sets a callback invoked after each automatic reconnect.
// The session opened by Connect never triggers it.
func (c *Client) SetOnReconnect(callback func()) {
	c.callbackMu.Lock()
	c.onReconnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked with the cause whenever the
// session drops unexpectedly. Close does not trigger it.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for handler failures. Without one they are
// dropped silently.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler converts paho messages to Message, recovers handler panics
// and logs handler errors.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, pm pahomqtt.Message) {
		msg := Message{
			Topic:    pm.Topic(),
			Payload:  pm.Payload(),
			QoS:      pm.Qos(),
			Retained: pm.Retained(),
		}

		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("message handler panicked", "topic", msg.Topic, "panic", r)
				}
			}
		}()

		if err := handler(msg); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("message handler failed", "topic", msg.Topic, "error", err)
			}
		}
	}
}
