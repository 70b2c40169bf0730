package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load reads and validates the application configuration. The first path
// that can be read wins; with no paths given the default locations are
// tried. Missing knobs are filled with engineering defaults, not zeros.
func Load(paths ...string) (*AppConfig, error) {
	if len(paths) == 0 {
		paths = []string{"config.yml", "./config/config.yml"}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every knob set to its default,
// useful for tests and for embedding the core as a library.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.applyDefaults()
	return cfg
}

// applyEnv lets deployment environments override the endpoint addresses
// without editing the config file.
func (c *AppConfig) applyEnv() {
	if v := os.Getenv("TRACKING_REDIS_ADDR"); v != "" {
		c.Bus.Addr = v
	}
	if v := os.Getenv("TRACKING_BUS_DRIVER"); v != "" {
		c.Bus.Driver = v
	}
	if v := os.Getenv("TRACKING_MQTT_BROKER"); v != "" {
		c.MQTT.BrokerURL = v
	}
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 16080
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9100
	}
	if c.Tracking.LatenessWindowSeconds == 0 {
		c.Tracking.LatenessWindowSeconds = 30
	}
	if c.Tracking.StaleThresholdSeconds == 0 {
		c.Tracking.StaleThresholdSeconds = 60
	}
	if c.Tracking.OfflineThresholdSeconds == 0 {
		c.Tracking.OfflineThresholdSeconds = 300
	}
	if c.Tracking.PresenceSweepIntervalSeconds == 0 {
		c.Tracking.PresenceSweepIntervalSeconds = 10
	}
	if c.Tracking.PerSubscriberBufferSize == 0 {
		c.Tracking.PerSubscriberBufferSize = 256
	}
	if c.Tracking.StatsWindowSeconds == 0 {
		c.Tracking.StatsWindowSeconds = 60
	}
	if c.Bus.Driver == "" {
		c.Bus.Driver = "memory"
	}
	if c.Bus.Addr == "" {
		c.Bus.Addr = "localhost:6379"
	}
	if c.Bus.Channel == "" {
		c.Bus.Channel = "asset-tracking.events"
	}
	if c.Transport.HeartbeatIntervalSeconds == 0 {
		c.Transport.HeartbeatIntervalSeconds = 30
	}
	if c.Transport.HeartbeatTimeoutSeconds == 0 {
		c.Transport.HeartbeatTimeoutSeconds = 75
	}
	if c.Transport.WriteTimeoutSeconds == 0 {
		c.Transport.WriteTimeoutSeconds = 10
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "asset-tracking-ingest"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "assets"
	}
	if c.MQTT.QoS == 0 {
		c.MQTT.QoS = 1
	}
}
