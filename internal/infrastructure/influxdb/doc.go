// Package influxdb records relay routing decisions in InfluxDB 2.x.
//
// Each message the relay evaluates becomes one relay_routes point:
//
//	relay_routes,outcome=relayed,device=pcu,peripheral=sw payload_bytes=1i
//
// Malformed topics carry only the outcome tag. Points go through the
// client library's batching WriteAPI, so WriteRouteOutcome never blocks on
// the network; rejected batches reach the SetOnError callback.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })
package influxdb
