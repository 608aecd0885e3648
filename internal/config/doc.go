// Package config loads, normalizes, and validates dealdesk configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DEALDESK_API_URL, including values from a .env file in the working
// directory. The Config type centralizes every knob the CLI and the workflow
// controller need, so service endpoints, timeouts, and state directories are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
