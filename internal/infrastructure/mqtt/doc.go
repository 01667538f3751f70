// Package mqtt provides MQTT client connectivity for the stimulus relay.
//
// This package manages:
//   - Connection to the broker with optional auto-reconnect
//   - Non-blocking publishing with asynchronous delivery results
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Optional retained status messages and Last Will and Testament
//   - Connection health monitoring
//
// Connection handling, QoS delivery, TLS and backoff are provided by
// paho.mqtt.golang; this package only wraps it.
//
// # Security Considerations
//
//   - TLS is enabled by an mqtts:// or ssl:// broker URL (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("dev/pcu/uuid/+/in/sw/+", 0,
//	    func(msg mqtt.Message) error {
//	        log.Printf("Received: %s = %s", msg.Topic, msg.Payload)
//	        return nil
//	    })
//
//	// Publish never waits for the broker, so it may run inside a handler.
//	client.Publish("dev/pcu/uuid/1234-5678/out/led/3", []byte("1"), 0, false, nil)
package mqtt
