// Package config loads apicheck configuration.
//
// Configuration comes from a .properties, YAML or JSON file, optionally
// preceded by a .env file in the same directory. Every key can be
// overridden by an APICHECK_<KEY> environment variable.
package config
