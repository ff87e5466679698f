package config

import "fmt"

// ConfigError reports a missing or invalid setting. It is always fatal at startup.
type ConfigError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Field, e.Msg, e.Err)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }
