// Package config loads, normalizes, and validates shelfsync configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts),
// reads TOML files, loads a .env file from the working directory, and
// honours environment fallbacks such as NOTION_TOKEN and TMDB_API_KEY. The
// Config type holds destination credentials, provider credentials, sync
// tuning, and the per-target database mappings in one place.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
