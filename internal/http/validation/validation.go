package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/julo/lendcore/internal/domain/otp"
)

var registerOnce sync.Once

// Register installs the custom binding tags on gin's validator. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("idphone", func(fl validator.FieldLevel) bool {
			return otp.IsPhone(fl.Field().String())
		})
	})
}

// Codes turns a binding error into error codes named after the JSON field,
// such as "phone_invalid" or "amount_required".
func Codes(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"invalid_request"}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field()+"_"+reason(fe.Tag()))
	}
	return out
}

func reason(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "min", "gt", "gte":
		return "too_small"
	case "max", "lt", "lte":
		return "too_large"
	default:
		return "invalid"
	}
}
