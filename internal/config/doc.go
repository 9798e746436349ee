// Package config loads, normalizes, and validates inkwell configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and validates workflow templates against the
// declared stages. The Config type centralizes every knob the daemon and CLI
// need, allowing state directories, stage commands, and gate thresholds to be
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
