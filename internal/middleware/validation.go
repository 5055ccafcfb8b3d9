package middleware

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the slot format validators on gin's binding
// engine so malformed dates and times are rejected at bind time.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	must(v.RegisterValidation("slotdate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("slottime", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
