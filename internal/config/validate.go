package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ConfigurationError lists the settings that stop the agent from starting.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "configuration: " + strings.Join(parts, "; ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Validate reports problems by environment variable name.
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("configuration: %w", err)
	}

	cfgErr := &ConfigurationError{}
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required", "required_if", "required_unless":
			cfgErr.Missing = append(cfgErr.Missing, fe.Field())
		default:
			cfgErr.Invalid = append(cfgErr.Invalid, fe.Field())
		}
	}
	sort.Strings(cfgErr.Missing)
	sort.Strings(cfgErr.Invalid)
	return cfgErr
}
