// Package config loads and validates the waba-gateway YAML configuration.
//
// Configuration is a single YAML file. Environment variables in the form
// ${VAR_NAME} are expanded before parsing, and duration fields accept Go
// duration strings ("30m", "5s").
//
// Example:
//
//	server:
//	  http_addr: ":8080"
//	database:
//	  path: /var/lib/waba-gateway/gateway.db
//	session:
//	  idle_timeout: 30m
//	  lease_timeout: 5s
//	  dedupe_window: 20
//	logging:
//	  level: info
//	  format: text
//
// Session tuning fields are optional; missing values fall back to
// DefaultIdleTimeout, DefaultLeaseTimeout, and DefaultDedupeWindow.
package config
