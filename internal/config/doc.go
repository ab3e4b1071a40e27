// Package config loads, validates, and normalizes curator's TOML
// configuration.
package config
