package models

import "strings"

// Mode selects which transforms run during a build.
type Mode string

const (
	// ModeDevelopment keeps output readable and emits source maps.
	ModeDevelopment Mode = "development"
	// ModeProduction enables minification and image compression.
	ModeProduction Mode = "production"
)

// ParseMode normalizes a mode string. Anything that is not production
// (including the empty string) is treated as development.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return ModeProduction
	default:
		return ModeDevelopment
	}
}

// Valid returns true if the mode is a known value.
func (m Mode) Valid() bool {
	switch m {
	case ModeDevelopment, ModeProduction:
		return true
	default:
		return false
	}
}

// IsProduction reports whether size-reducing transforms are enabled.
func (m Mode) IsProduction() bool {
	return m == ModeProduction
}
