package config

import "os"

// ExpandEnv expands environment variables in raw configuration content.
// Supports both ${VAR} and $VAR syntax (standard shell-style).
//
// Missing variables expand to the empty string. Validation catches required
// fields that end up empty.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
