// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Defaults for the tracking policy knobs (lateness window, presence
// thresholds, buffer sizes) are applied after load, so an empty file still
// yields a runnable configuration.
package config
