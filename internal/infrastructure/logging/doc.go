// Package logging builds the relay's slog logger.
//
// Records are key=value text by default and JSON with format: json. Every
// record carries service=stimulus and the build version, and each component
// adds its own component= tag:
//
//	log := logging.New(cfg.Logging, version)
//	relayLog := log.Component("relay")
//	relayLog.Info("message received", "topic", topic, "qos", qos)
//
// Configured by the logging section:
//
//	logging:
//	  level: info     # debug, info, warn, error
//	  format: text    # text, json
//	  output: stdout  # stdout, stderr
package logging
