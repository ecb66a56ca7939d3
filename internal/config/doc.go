// Package config handles configuration loading for coven-connect.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Empty fields get defaults, then the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_CONNECT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/connect.yaml
//  3. ~/.config/coven/connect.yaml
//
// A .env file in the working directory is loaded into the environment by the
// CLI before the config is read.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${COVEN_CONNECT_JWT_SECRET}"
//
// Unset variables expand to the empty string. COVEN_CONNECT_DB_PATH, when
// set, overrides database.path.
//
// # Durations
//
// session.request_timeout is a Go duration string ("10s", "1m").
package config
