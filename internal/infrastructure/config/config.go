package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Broker defaults.
const (
	// DefaultBrokerURL is used when no broker URL is given on the command line.
	DefaultBrokerURL = "mqtt://localhost:1883"

	defaultPlainPort = 1883
	defaultTLSPort   = 8883

	// clientIDPrefix is prepended to generated client IDs.
	clientIDPrefix = "stimulus-"

	// clientIDSuffixLen is the number of UUID characters kept in generated client IDs.
	clientIDSuffixLen = 8
)

// segmentPattern matches a device or peripheral topic segment.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// anyDevice subscribes to every device.
const anyDevice = "+"

// Direction literals of the peripheral topic grammar.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Config is the root configuration structure for the stimulus relay.
// Every field has a default, so the relay runs without any config file.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Relay    RelayConfig    `yaml:"relay"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// StatusTopic receives retained online/offline status messages and the
	// Last Will. Empty disables status publishing.
	StatusTopic string `yaml:"status_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	// AutoReconnect lets the client library reconnect after a lost connection.
	// When false, a lost connection stops the relay.
	AutoReconnect bool `yaml:"auto_reconnect"`
	InitialDelay  int  `yaml:"initial_delay"`
	MaxDelay      int  `yaml:"max_delay"`
}

// RelayConfig describes which peripheral topics are relayed and where to.
type RelayConfig struct {
	// Device is the device segment used in the subscription filter.
	// "+" subscribes to every device.
	Device string `yaml:"device"`

	// Direction is the direction segment used in the subscription filter.
	Direction string `yaml:"direction"`

	// SourcePeripheral is the peripheral whose messages are relayed.
	SourcePeripheral string `yaml:"source_peripheral"`

	// TargetPeripheral is the peripheral the messages are relayed to.
	TargetPeripheral string `yaml:"target_peripheral"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the health/metrics HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// An empty path skips step 2.
//
// Environment variables follow the pattern: STIMULUS_SECTION_KEY
// For example: STIMULUS_MQTT_HOST, STIMULUS_INFLUXDB_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = generateClientID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the relay's built-in defaults.
//
// The defaults subscribe to dev/pcu/uuid/+/in/sw/+ on localhost:1883
// and relay to the led peripheral.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     defaultPlainPort,
				ClientID: generateClientID(),
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				AutoReconnect: true,
				InitialDelay:  1,
				MaxDelay:      60,
			},
		},
		Relay: RelayConfig{
			Device:           "pcu",
			Direction:        DirectionIn,
			SourcePeripheral: "sw",
			TargetPeripheral: "led",
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			Org:           "stimulus",
			Bucket:        "relay",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// generateClientID returns a random client ID so that several relays can
// share a broker without kicking each other off.
func generateClientID() string {
	return clientIDPrefix + uuid.NewString()[:clientIDSuffixLen]
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: STIMULUS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("STIMULUS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("STIMULUS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("STIMULUS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("STIMULUS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("STIMULUS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// ParseBrokerURL parses a broker URL of the form scheme://host[:port].
//
// Supported schemes:
//   - mqtt, tcp: plain TCP (default port 1883)
//   - mqtts, ssl, tls: TLS (default port 8883)
//
// The client ID of the returned config is empty.
func ParseBrokerURL(raw string) (MQTTBrokerConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return MQTTBrokerConfig{}, fmt.Errorf("parsing broker url %q: %w", raw, err)
	}

	var broker MQTTBrokerConfig
	switch strings.ToLower(u.Scheme) {
	case "mqtt", "tcp":
		broker.Port = defaultPlainPort
	case "mqtts", "ssl", "tls":
		broker.TLS = true
		broker.Port = defaultTLSPort
	default:
		return MQTTBrokerConfig{}, fmt.Errorf("broker url %q: unsupported scheme %q", raw, u.Scheme)
	}

	broker.Host = u.Hostname()
	if broker.Host == "" {
		return MQTTBrokerConfig{}, fmt.Errorf("broker url %q: missing host", raw)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return MQTTBrokerConfig{}, fmt.Errorf("broker url %q: invalid port %q", raw, p)
		}
		broker.Port = port
	}

	return broker, nil
}

// ApplyBrokerURL replaces the broker host, port and TLS setting with the
// values parsed from raw. The client ID is kept.
func (c *Config) ApplyBrokerURL(raw string) error {
	broker, err := ParseBrokerURL(raw)
	if err != nil {
		return err
	}

	c.MQTT.Broker.Host = broker.Host
	c.MQTT.Broker.Port = broker.Port
	c.MQTT.Broker.TLS = broker.TLS
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Relay validation
	if c.Relay.Device == "" {
		errs = append(errs, "relay.device is required")
	} else if c.Relay.Device != anyDevice && !segmentPattern.MatchString(c.Relay.Device) {
		errs = append(errs, "relay.device must be \"+\" or letters, digits and underscores")
	}
	if c.Relay.Direction != DirectionIn && c.Relay.Direction != DirectionOut {
		errs = append(errs, "relay.direction must be \"in\" or \"out\"")
	}
	if c.Relay.SourcePeripheral == "" {
		errs = append(errs, "relay.source_peripheral is required")
	} else if !segmentPattern.MatchString(c.Relay.SourcePeripheral) {
		errs = append(errs, "relay.source_peripheral must be letters, digits and underscores")
	}
	if c.Relay.TargetPeripheral == "" {
		errs = append(errs, "relay.target_peripheral is required")
	} else if !segmentPattern.MatchString(c.Relay.TargetPeripheral) {
		errs = append(errs, "relay.target_peripheral must be letters, digits and underscores")
	}
	// A relay that republishes to its own source peripheral would feed itself.
	if c.Relay.SourcePeripheral != "" && c.Relay.SourcePeripheral == c.Relay.TargetPeripheral {
		errs = append(errs, "relay.target_peripheral must differ from relay.source_peripheral")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
