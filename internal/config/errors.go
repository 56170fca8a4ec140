package config

import "fmt"

// ConfigurationError marks a configuration problem that must halt the
// process before any session starts. It is never produced mid-run.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Msg
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Msg)
}

// Errorf builds a ConfigurationError for the named field.
func Errorf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
