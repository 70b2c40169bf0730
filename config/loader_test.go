package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 18080
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 18080 {
		t.Errorf("explicit port not honored: %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 9100 {
		t.Errorf("default metrics port not applied: %d", cfg.Server.MetricsPort)
	}
	if cfg.Tracking.LatenessWindowSeconds != 30 {
		t.Errorf("default lateness window not applied: %d", cfg.Tracking.LatenessWindowSeconds)
	}
	if cfg.Tracking.StaleThresholdSeconds != 60 || cfg.Tracking.OfflineThresholdSeconds != 300 {
		t.Errorf("default presence thresholds not applied: %+v", cfg.Tracking)
	}
	if cfg.Tracking.PerSubscriberBufferSize != 256 {
		t.Errorf("default buffer size not applied: %d", cfg.Tracking.PerSubscriberBufferSize)
	}
	if cfg.Bus.Driver != "memory" {
		t.Errorf("default bus driver not applied: %s", cfg.Bus.Driver)
	}
	if cfg.Transport.HeartbeatIntervalSeconds != 30 || cfg.Transport.HeartbeatTimeoutSeconds != 75 {
		t.Errorf("default heartbeat settings not applied: %+v", cfg.Transport)
	}
	if cfg.MQTT.TopicPrefix != "assets" || cfg.MQTT.QoS != 1 {
		t.Errorf("default mqtt settings not applied: %+v", cfg.MQTT)
	}

	t.Log("✓ unset knobs get engineering defaults")
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 16080
  metricsPort: 9200
tracking:
  latenessWindowSeconds: 15
  staleThresholdSeconds: 45
  offlineThresholdSeconds: 120
  presenceSweepIntervalSeconds: 5
  perSubscriberBufferSize: 64
  statsWindowSeconds: 30
bus:
  driver: redis
  addr: redis.internal:6379
  db: 2
  channel: tracking.events
transport:
  heartbeatIntervalSeconds: 20
  heartbeatTimeoutSeconds: 50
  authTokens:
    - token-a
    - token-b
mqtt:
  brokerURL: tcp://broker.internal:1883
  topicPrefix: fleet
  qos: 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Bus.Driver != "redis" || cfg.Bus.Addr != "redis.internal:6379" || cfg.Bus.DB != 2 {
		t.Errorf("bus section not loaded: %+v", cfg.Bus)
	}
	if cfg.Tracking.LatenessWindowSeconds != 15 {
		t.Errorf("tracking section not loaded: %+v", cfg.Tracking)
	}
	if len(cfg.Transport.AuthTokens) != 2 || cfg.Transport.AuthTokens[0] != "token-a" {
		t.Errorf("auth tokens not loaded: %v", cfg.Transport.AuthTokens)
	}
	if cfg.MQTT.BrokerURL != "tcp://broker.internal:1883" || cfg.MQTT.QoS != 2 {
		t.Errorf("mqtt section not loaded: %+v", cfg.MQTT)
	}

	t.Log("✓ every section round-trips from yaml")
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "server: [port: 1"},
		{"unknown bus driver", "bus:\n  driver: kafka\n"},
		{"negative port", "server:\n  port: -1\n"},
		{"qos out of range", "mqtt:\n  qos: 3\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Error("expected an error, got none")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRACKING_REDIS_ADDR", "redis.prod:6379")
	t.Setenv("TRACKING_BUS_DRIVER", "redis")

	path := writeConfig(t, `
server:
  port: 16080
bus:
  driver: memory
  addr: localhost:6379
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bus.Driver != "redis" || cfg.Bus.Addr != "redis.prod:6379" {
		t.Errorf("env overrides not applied: %+v", cfg.Bus)
	}

	t.Log("✓ environment overrides beat the file")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 16080 || cfg.Bus.Driver != "memory" {
		t.Errorf("Default returned unexpected config: %+v", cfg)
	}
}
