package mqtt

import (
	"fmt"
)

// Subscribe registers handler for messages matching filter. Filters may use
// the + and # wildcards, e.g. "dev/pcu/uuid/+/in/sw/+".
//
// Handlers run on the client library's single delivery goroutine, one
// message at a time in arrival order. A handler must return promptly and
// must not wait on broker round trips: while it runs, no other message is
// delivered and no acknowledgement for this client is processed. Publish
// does not wait and may be called from a handler.
//
// The subscription is recorded and restored after every reconnect. If the
// broker rejects it or does not answer in time, nothing is recorded.
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: %s: nil handler", ErrSubscribeFailed, filter)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Recorded first so a reconnect racing with the SUBACK still restores it.
	c.track(subscription{topic: filter, qos: qos, handler: handler})

	token := c.client.Subscribe(filter, qos, c.wrapHandler(handler))
	var err error
	if !token.WaitTimeout(defaultPublishTimeout) {
		err = fmt.Errorf("%w: %s: no SUBACK after %v", ErrSubscribeFailed, filter, defaultPublishTimeout)
	} else if tokenErr := token.Error(); tokenErr != nil {
		err = fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, filter, tokenErr)
	}
	if err != nil {
		c.untrack(filter)
		return err
	}

	return nil
}

// Unsubscribe removes the subscription for filter, which must be the exact
// string passed to Subscribe. Messages already in flight may still reach
// the handler.
func (c *Client) Unsubscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.untrack(filter)

	token := c.client.Unsubscribe(filter)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("mqtt: unsubscribe %s: no UNSUBACK after %v", filter, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: unsubscribe %s: %w", filter, err)
	}

	return nil
}

func (c *Client) track(sub subscription) {
	c.subMu.Lock()
	c.subscriptions[sub.topic] = sub
	c.subMu.Unlock()
}

func (c *Client) untrack(filter string) {
	c.subMu.Lock()
	delete(c.subscriptions, filter)
	c.subMu.Unlock()
}
