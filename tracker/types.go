package tracker

import (
	"regexp"
	"time"
)

// AssetType classifies a tracked asset. "vehicle" and "delivery" are the
// built-in types; any lowercase identifier is accepted so deployments can
// introduce new types without a code change.
type AssetType string

const (
	AssetTypeVehicle  AssetType = "vehicle"
	AssetTypeDelivery AssetType = "delivery"
)

var assetTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Valid reports whether the type is a well-formed asset type identifier.
func (t AssetType) Valid() bool {
	return assetTypePattern.MatchString(string(t))
}

// AssetIdentity identifies a tracked asset. It is immutable and used as the
// state-store key; equality is value equality.
type AssetIdentity struct {
	Type AssetType `json:"assetType"`
	ID   string    `json:"assetId"`
}

func (id AssetIdentity) String() string {
	return string(id.Type) + ":" + id.ID
}

// LocationReport is a single position report from a device. Timestamp is
// producer-supplied; LastUpdatedAt on the stored state is server-receipt
// time. Optional fields are pointers so "absent" and "zero" stay distinct.
type LocationReport struct {
	DeviceID  string            `json:"deviceId" validate:"required"`
	UserID    string            `json:"userId" validate:"required"`
	Latitude  float64           `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64           `json:"longitude" validate:"gte=-180,lte=180"`
	Speed     *float64          `json:"speed,omitempty" validate:"omitempty,gte=0"`
	Heading   *float64          `json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	Accuracy  *float64          `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
	Altitude  *float64          `json:"altitude,omitempty"`
	Timestamp time.Time         `json:"timestamp" validate:"required"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Status is the derived presence state of an asset. Transitions run forward
// (active -> stale -> offline); any accepted report resets to active.
type Status string

const (
	StatusActive  Status = "active"
	StatusStale   Status = "stale"
	StatusOffline Status = "offline"
)

// AssetState is the authoritative last-known state for one asset.
type AssetState struct {
	Identity      AssetIdentity  `json:"identity"`
	LastReport    LocationReport `json:"lastReport"`
	LastUpdatedAt time.Time      `json:"lastUpdatedAt"`
	Status        Status         `json:"status"`
}

// PresenceChange is the payload of a presence.changed event.
type PresenceChange struct {
	Status     Status    `json:"status"`
	Previous   Status    `json:"previous"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// TypeStats is the per-type slice of a stats snapshot.
type TypeStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Stale   int `json:"stale"`
	Offline int `json:"offline"`
}

// TrackingStats is a derived, on-demand snapshot; it has no lifecycle of
// its own and is never persisted.
type TrackingStats struct {
	TotalAssets     int                  `json:"totalAssets"`
	ActiveCount     int                  `json:"activeCount"`
	StaleCount      int                  `json:"staleCount"`
	OfflineCount    int                  `json:"offlineCount"`
	PerType         map[string]TypeStats `json:"perType"`
	EventsPerSecond float64              `json:"eventsPerSecond"`
	DroppedEvents   uint64               `json:"droppedEvents"`
	StaleReports    uint64               `json:"staleReports"`
	GeneratedAt     time.Time            `json:"generatedAt"`
}
