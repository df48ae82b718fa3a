// Package config loads, normalizes, and validates captioner configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a project-local .env file, and honours
// environment fallbacks such as GOOGLE_CLOUD_PROJECT_ID. The Config type
// centralizes every knob the daemon and CLI need, so public, upload, render and
// state directories plus external service credentials are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
