// Package config loads, normalizes, and validates vidmentor configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GEMINI_API_KEY. Socket and database locations are derived from the data
// directory when left blank, so the daemon and CLI always agree on where to
// meet. Watch reports edits to the file so long-running processes can adjust
// their log level without a restart.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
