package config

import "log"

// Startup-fatal checks for credentials the process cannot run without.
// A missing secret is a deploy mistake, not a condition to limp through.

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("config: %s must be set", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	MustNonEmpty(string(value), envName)
}
