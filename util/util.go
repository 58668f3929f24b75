package util

import (
	"fmt"
	"os"
	"strings"
)

// Errors accumulates independent errors so that a config constructor
// can report every missing variable at once rather than one at a time.
type Errors []error

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Add appends an error to the accumulator.
func (e *Errors) Add(err error) {
	*e = append(*e, err)
}

// RequireEnv fetches an environment variable, recording an error in
// errs if the variable is unset or empty.
func RequireEnv(varName string, errs *Errors) string {
	envVar := os.Getenv(varName)
	if len(envVar) == 0 {
		errs.Add(fmt.Errorf("environment variable %s must be set", varName))
	}
	return envVar
}

// EnvOrDefault fetches an environment variable, falling back to
// defaultValue if it is unset.
func EnvOrDefault(varName string, defaultValue string) string {
	envVar := os.Getenv(varName)
	if len(envVar) == 0 {
		return defaultValue
	}
	return envVar
}
