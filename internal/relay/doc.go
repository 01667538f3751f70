// Package relay connects the topic router to an MQTT client.
//
// A Relay subscribes to one peripheral filter, evaluates every inbound
// message with a router.Router and republishes relayed messages with the
// inbound QoS. It keeps per-outcome counters for the metrics endpoint and
// optionally forwards each decision to a Recorder (InfluxDB).
//
// Messages are handled on the MQTT delivery goroutine in arrival order.
// Publishing does not wait for the broker; the acknowledgement is checked
// later. The relay never buffers or retries. A failed publish is logged,
// counted and dropped.
//
// Usage:
//
//	rt := router.New(router.DefaultRule, router.WithLogger(log))
//	r, err := relay.New(relay.Options{
//	    Client: mqttClient,
//	    Router: rt,
//	    Filter: router.PeripheralFilter("pcu", router.DirectionIn, "sw"),
//	    Logger: log,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := r.Start(ctx); err != nil {
//	    return err
//	}
//	defer r.Stop()
package relay
