// Package tracker implements the real-time asset-location tracking core:
// report validation, the authoritative last-known-state store, presence
// (stale/offline) detection, and derived tracking statistics.
//
// The package has no transport concept. Ingestion boundaries (HTTP, MQTT)
// call Service.SubmitLocation and decide themselves how to surface a
// rejection; observers receive updates through the event bus.
package tracker
