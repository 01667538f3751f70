// stimulus relays switch inputs to LED outputs over MQTT.
//
// It subscribes to dev/<dev>/uuid/+/in/sw/+ on a broker and republishes
// every switch payload to dev/<dev>/uuid/<uuid>/out/led/<index>.
//
// Usage:
//
//	stimulus [broker-url] [--config path] [--log-level level]
//
// The broker URL defaults to mqtt://localhost:1883.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/stimulus/internal/api"
	"github.com/nerrad567/stimulus/internal/infrastructure/config"
	"github.com/nerrad567/stimulus/internal/infrastructure/influxdb"
	"github.com/nerrad567/stimulus/internal/infrastructure/logging"
	"github.com/nerrad567/stimulus/internal/infrastructure/mqtt"
	"github.com/nerrad567/stimulus/internal/relay"
	"github.com/nerrad567/stimulus/internal/router"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnvVar names the config file when --config is not given.
const configEnvVar = "STIMULUS_CONFIG"

// options holds the command-line flags.
type options struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(exitCode(err))
	}
}

// newRootCommand builds the stimulus command.
func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "stimulus [broker-url]",
		Short: "Relay MQTT switch inputs to LED outputs",
		Long: `stimulus subscribes to switch input topics on an MQTT broker and
republishes each payload to the matching LED output topic:

  dev/<dev>/uuid/<uuid>/in/sw/<index>  ->  dev/<dev>/uuid/<uuid>/out/led/<index>

The optional broker URL has the form scheme://host:port, where scheme is
mqtt, tcp, mqtts, ssl or tls. It defaults to ` + config.DefaultBrokerURL + `.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (env "+configEnvVar+")")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	return cmd
}

// run is the application logic, separated from main for testability.
// It blocks until ctx is cancelled or, with auto reconnect disabled,
// until the broker connection is lost.
func run(ctx context.Context, opts options, args []string) error {
	log := logging.Default()
	log.Info("starting stimulus",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(opts, args)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"broker", brokerAddress(cfg.MQTT.Broker),
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", brokerAddress(cfg.MQTT.Broker),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	connLost := make(chan error, 1)
	mqttClient.SetOnReconnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
		if !cfg.MQTT.Reconnect.AutoReconnect {
			select {
			case connLost <- err:
			default:
			}
		}
	})
	if !cfg.MQTT.Reconnect.AutoReconnect && !mqttClient.IsConnected() {
		return fmt.Errorf("%w: before the relay started", relay.ErrConnectionLost)
	}

	var influxClient *influxdb.Client
	var recorder relay.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	rt := router.New(router.Rule{
		Source: cfg.Relay.SourcePeripheral,
		Target: cfg.Relay.TargetPeripheral,
	}, router.WithLogger(log.Component("router")))

	rl, err := relay.New(relay.Options{
		Client:   mqttClient,
		Router:   rt,
		Filter:   router.PeripheralFilter(cfg.Relay.Device, cfg.Relay.Direction, cfg.Relay.SourcePeripheral),
		QoS:      byte(cfg.MQTT.QoS), // #nosec G115 -- validated to 0..2
		Logger:   log.Component("relay"),
		Recorder: recorder,
	})
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	if err := rl.Start(ctx); err != nil {
		return fmt.Errorf("starting relay: %w", err)
	}
	defer rl.Stop()

	var apiServer *api.Server
	if cfg.API.Enabled {
		var apiErr error
		apiServer, apiErr = api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			MQTT:    mqttClient,
			Relay:   rl,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, relaying messages", "filter", rl.Filter())

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-connLost:
		runErr = fmt.Errorf("%w: %w", relay.ErrConnectionLost, err)
	}

	m := rl.GetMetrics()
	log.Info("stimulus stopped",
		"exit_code", exitCode(runErr),
		"received", m.Received,
		"relayed", m.Relayed,
	)
	return runErr
}

// loadConfig resolves the configuration from the config file, the
// environment, the positional broker URL and the flags, in that order.
func loadConfig(opts options, args []string) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv(configEnvVar)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if len(args) > 0 {
		if err := cfg.ApplyBrokerURL(args[0]); err != nil {
			return nil, fmt.Errorf("broker url: %w", err)
		}
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	return cfg, nil
}

// healthCheck verifies the broker connection and every optional backend
// that was started. Nil backends are skipped.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	return nil
}

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

func brokerAddress(b config.MQTTBrokerConfig) string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}
