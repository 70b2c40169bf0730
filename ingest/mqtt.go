// Package ingest provides the MQTT ingestion source: devices publish JSON
// location reports to assets/{assetType}/{assetId}/location and the source
// feeds them through the same submit path as HTTP ingestion.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/theoremus-urban-solutions/asset-tracking/config"
	"github.com/theoremus-urban-solutions/asset-tracking/tracker"
)

// Source subscribes to the location topic tree of an MQTT broker. A
// malformed message is logged and dropped; it never stops the source.
type Source struct {
	cfg    config.MQTTConfig
	svc    *tracker.Service
	logger *slog.Logger
	client mqtt.Client
}

// NewSource builds the source. Call Start to connect.
func NewSource(cfg config.MQTTConfig, svc *tracker.Service, logger *slog.Logger) *Source {
	return &Source{
		cfg:    cfg,
		svc:    svc,
		logger: logger.With("component", "ingest.mqtt"),
	}
}

// Start connects to the broker and subscribes to
// {topicPrefix}/+/+/location.
func (s *Source) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true)
	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	filter := s.cfg.TopicPrefix + "/+/+/location"
	token := s.client.Subscribe(filter, byte(s.cfg.QoS), s.handleMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", filter, token.Error())
	}
	s.logger.Info("mqtt source started", "broker", s.cfg.BrokerURL, "filter", filter)
	return nil
}

// Stop disconnects from the broker.
func (s *Source) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

func (s *Source) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	assetType, assetID, err := parseLocationTopic(s.cfg.TopicPrefix, msg.Topic())
	if err != nil {
		s.logger.Warn("message rejected", "topic", msg.Topic(), "err", err)
		return
	}
	var report tracker.LocationReport
	if err := json.Unmarshal(msg.Payload(), &report); err != nil {
		s.logger.Warn("message rejected", "topic", msg.Topic(), "err", err)
		return
	}
	res := s.svc.SubmitLocation(context.Background(), tracker.AssetType(assetType), assetID, report)
	if !res.Accepted {
		s.logger.Warn("report rejected", "topic", msg.Topic(), "reason", res.Reason)
	}
}

// parseLocationTopic extracts asset type and id from
// {prefix}/{assetType}/{assetId}/location.
func parseLocationTopic(prefix, topic string) (string, string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != prefix || parts[3] != "location" {
		return "", "", fmt.Errorf("expected %s/{assetType}/{assetId}/location, got %q", prefix, topic)
	}
	if parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("empty asset type or id in topic %q", topic)
	}
	return parts[1], parts[2], nil
}
