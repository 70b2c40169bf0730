// Package assettracking exposes the real-time asset-location tracking core
// over HTTP: report ingestion, current-state and stats queries, a health
// endpoint, and the observer WebSocket endpoint.
package assettracking
