package middleware

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/schedule"
)

// RegisterValidators installs the custom binding tags on gin's validator and
// reports fields by their JSON names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("clock", validateClock); err != nil {
		return fmt.Errorf("failed to register clock validator: %w", err)
	}
	return nil
}

// validateClock accepts HH:MM wall-clock strings.
func validateClock(fl validator.FieldLevel) bool {
	_, err := schedule.ParseClock(fl.Field().String())
	return err == nil
}
