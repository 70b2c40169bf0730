package config

// ServerConfig contains the API server configuration
type ServerConfig struct {
	Port        int `yaml:"port" validate:"gt=0"`
	MetricsPort int `yaml:"metricsPort" validate:"gte=0"`
}

// TrackingConfig contains the tracking core policy knobs. All durations
// are seconds.
type TrackingConfig struct {
	LatenessWindowSeconds        int `yaml:"latenessWindowSeconds" validate:"gte=0"`
	StaleThresholdSeconds        int `yaml:"staleThresholdSeconds" validate:"gte=0"`
	OfflineThresholdSeconds      int `yaml:"offlineThresholdSeconds" validate:"gte=0"`
	PresenceSweepIntervalSeconds int `yaml:"presenceSweepIntervalSeconds" validate:"gte=0"`
	PerSubscriberBufferSize      int `yaml:"perSubscriberBufferSize" validate:"gte=0"`
	StatsWindowSeconds           int `yaml:"statsWindowSeconds" validate:"gte=0"`
}

// BusConfig selects the event bus implementation. Driver "memory" keeps
// fan-out in-process; "redis" relays events through Redis pub/sub so
// subscribers on other instances see them too.
type BusConfig struct {
	Driver  string `yaml:"driver" validate:"omitempty,oneof=memory redis"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db" validate:"gte=0"`
	Channel string `yaml:"channel"`
}

// TransportConfig contains the observer WebSocket transport configuration.
type TransportConfig struct {
	HeartbeatIntervalSeconds int      `yaml:"heartbeatIntervalSeconds" validate:"gte=0"`
	HeartbeatTimeoutSeconds  int      `yaml:"heartbeatTimeoutSeconds" validate:"gte=0"`
	WriteTimeoutSeconds      int      `yaml:"writeTimeoutSeconds" validate:"gte=0"`
	AuthTokens               []string `yaml:"authTokens"`
}

// MQTTConfig contains the optional MQTT ingestion source configuration.
// An empty BrokerURL disables the source.
type MQTTConfig struct {
	BrokerURL   string `yaml:"brokerURL" validate:"omitempty,uri"`
	ClientID    string `yaml:"clientID"`
	TopicPrefix string `yaml:"topicPrefix"`
	QoS         int    `yaml:"qos" validate:"gte=0,lte=2"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server    ServerConfig    `yaml:"server" validate:"required"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Bus       BusConfig       `yaml:"bus"`
	Transport TransportConfig `yaml:"transport"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}
