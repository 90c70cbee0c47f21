// Package config handles configuration loading and management for reqspec.
//
// It provides functionality for:
//   - Loading configuration from .reqspec.yaml or .reqspec.json files
//   - Default configuration values
//   - REQSPEC_* environment variable overrides
package config
