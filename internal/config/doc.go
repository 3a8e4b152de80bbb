// Package config loads the runtime configuration of the user service.
//
// Values are resolved in this order, later sources winning:
//   - built-in defaults (port 5000, 5 connect attempts, ...)
//   - an optional YAML file named by CONFIG_FILE
//   - environment variables, optionally seeded from a .env file
//
// The resulting Config is validated before it is handed to the rest of the application.
package config
