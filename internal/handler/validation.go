package handler

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/triplens/service-trip-duration/internal/domain/trip"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules on gin's validator. Safe to call
// more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
			_, err := trip.ParsePickupTime(fl.Field().String())
			return err == nil
		})
	})
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
