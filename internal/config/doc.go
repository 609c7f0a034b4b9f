// Package config loads, normalizes, and validates appshell configuration.
//
// Settings live in a single TOML file. Missing files yield repository
// defaults, user paths (including tilde shortcuts) are expanded, and the
// speech engine command falls back to the platform's Python launcher. Always
// obtain settings through Load or a Store so downstream code receives
// sanitized paths and clear validation errors.
package config
