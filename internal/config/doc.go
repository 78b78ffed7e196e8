// Package config loads, normalizes, and validates scholardigest configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, accepts the legacy YAML layout, and honours
// environment fallbacks for LLM API keys. The Config type centralizes every
// knob the pipeline and CLI need so the data, report, and credential paths
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical tier labels, and clear validation errors.
package config
