// Package config loads, normalizes, and validates Pharos configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GITHUB_TOKEN. The Config type centralizes every knob the download worker,
// install engine, and image sync need, so staging/library directories and the
// ledger location are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
