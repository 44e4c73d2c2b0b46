package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	var b strings.Builder
	b.WriteString("invalid configuration:")
	for _, fe := range verrs {
		fmt.Fprintf(&b, "\n - %s: failed on '%s' (value: '%v')", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return errors.New(b.String())
}
