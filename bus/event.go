package bus

import (
	"encoding/json"
	"time"
)

// EventType discriminates the events the tracking core publishes.
type EventType string

const (
	EventLocationUpdate  EventType = "location.update"
	EventPresenceChanged EventType = "presence.changed"
)

// Well-known topics. Subscribing to TopicAll yields every event.
const (
	TopicLocation = "tracking.location"
	TopicPresence = "tracking.presence"
	TopicAll      = "tracking.*"
)

// Event is the unit carried by the bus. Its JSON form is also the outbound
// push message shape and the cross-instance wire format.
type Event struct {
	Type       EventType       `json:"type"`
	AssetType  string          `json:"assetType"`
	AssetID    string          `json:"assetId"`
	Payload    json.RawMessage `json:"payload"`
	ServerTime time.Time       `json:"serverTime"`
}
