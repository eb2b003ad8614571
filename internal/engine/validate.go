// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pdiddy/knockout-engine/pkg/types"
)

// configValidate checks SearchConfig struct tags. Field names in errors
// use the json tag so they match the config file keys.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New(validator.WithRequiredStructEnabled())
	configValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = configValidate.RegisterValidation("fraction", validateFraction)
}

// validateFraction accepts values in (0, 1].
func validateFraction(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return v > 0 && v <= 1
}

// Validate checks a search configuration before any model work. It returns
// types.ConfigErrors listing every rejected field.
func Validate(cfg types.SearchConfig) error {
	err := configValidate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &types.ConfigError{Reason: err.Error()}
	}

	out := make(types.ConfigErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, &types.ConfigError{Field: fe.Field(), Reason: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when " + strings.Replace(fe.Param(), " ", " is ", 1)
	case "fraction":
		return fmt.Sprintf("must be in (0, 1], got %v", fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of %s, got %q", strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
