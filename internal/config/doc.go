// Package config loads moneymap configuration.
//
// Values are layered, later layers winning:
//
//  1. Default()
//  2. an optional TOML file
//  3. environment variables prefixed MONEYMAP_, e.g. MONEYMAP_SERVER_HTTP_PORT
//
// and the result is checked by Validate.
package config
