package serverutils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"ai-mediagen-be/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report json/query names instead of Go field names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

// ValidateRequest runs the struct's validate tags and turns violations into a Validation error
// whose details map each offending field to the rule it broke.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Wrap(err, apperror.CodeValidation, "Invalid request")
	}

	fields := make(map[string]string, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		fields[fe.Field()] = rule
		messages = append(messages, fmt.Sprintf("%s must satisfy %s", fe.Field(), rule))
	}

	return apperror.Validation(strings.Join(messages, "; ")).WithDetail("fields", fields)
}
