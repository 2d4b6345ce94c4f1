package config

import "fmt"

// MissingCredentialError is returned when an upstream is used without its API key.
type MissingCredentialError struct {
	Name string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential: %s is not set", e.Name)
}
