// Package config loads, validates, and defaults trustlabel configuration from
// a TOML file. All paths are expanded relative to the user's home directory
// and missing files fall back to built-in defaults.
package config
