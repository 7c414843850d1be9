// Package config loads runtime configuration from environment variables
// and the TOML volumes file, validates directories, and logs the effective
// settings at startup.
package config
