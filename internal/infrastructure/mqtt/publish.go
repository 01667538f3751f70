package mqtt

import (
	"fmt"
)

// PublishDone receives the broker's verdict on a queued publish.
// err is nil once the broker has acknowledged the message (QoS 1 and 2)
// or it has been written to the connection (QoS 0).
type PublishDone func(err error)

// Publish queues a message for topic and returns without waiting for the
// broker. It is safe to call from a MessageHandler.
//
// The payload is forwarded as-is; size limits are left to the broker.
// Publishes from one goroutine reach the broker in call order.
//
// The returned error reports problems found before the message was queued
// (empty topic, bad QoS, no connection). Delivery failures are reported to
// done, which is called exactly once on its own goroutine when non-nil.
// A message whose acknowledgement does not arrive within the publish
// timeout is reported as failed.
//
// Example:
//
//	err := client.Publish("dev/pcu/uuid/1234-5678/out/led/3", []byte("1"), 1, false,
//	    func(err error) {
//	        if err != nil {
//	            log.Error("publish failed", "error", err)
//	        }
//	    })
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool, done PublishDone) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	c.connMu.RLock()
	if !c.connected || c.client == nil || !c.client.IsConnected() {
		c.connMu.RUnlock()
		return ErrNotConnected
	}
	c.pending.Add(1)
	c.connMu.RUnlock()

	token := c.client.Publish(topic, qos, retained, payload)
	go func() {
		defer c.pending.Done()

		var err error
		if !token.WaitTimeout(defaultPublishTimeout) {
			err = fmt.Errorf("%w: %s: no acknowledgement after %v", ErrPublishFailed, topic, defaultPublishTimeout)
		} else if tokenErr := token.Error(); tokenErr != nil {
			err = fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, tokenErr)
		}
		if done != nil {
			done(err)
		}
	}()

	return nil
}
