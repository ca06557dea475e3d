package config

import "fmt"

// ConfigurationError reports a missing or invalid setting. It is fatal at
// startup: no task runs when configuration does not validate.
type ConfigurationError struct {
	// Key is the dot-notation setting that failed, e.g. "paths.build_root".
	Key string
	// Reason describes the problem.
	Reason string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration %s: %s", e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
