// Package config resolves the relay configuration.
//
// Every setting has a default matching the plain command-line behaviour,
// so a config file is optional. Values are layered as defaults, then the
// YAML file, then STIMULUS_* environment variables, then the broker URL
// argument, and checked by Validate.
//
//	cfg, err := config.Load(path) // "" skips the file
//	if err != nil {
//	    return err
//	}
//	if err := cfg.ApplyBrokerURL("mqtt://broker.local:1883"); err != nil {
//	    return err
//	}
//
// Keep broker and InfluxDB credentials in the environment rather than the
// file.
package config
