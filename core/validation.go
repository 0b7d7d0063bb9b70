package core

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// structValidate is the shared validator instance for engine inputs
var structValidate *validator.Validate

func init() {
	structValidate = validator.New()

	// Pattern names end up in audit lines and must stay single-line
	_ = structValidate.RegisterValidation("patternname", validatePatternName)
}

// validatePatternName rejects names containing line breaks
func validatePatternName(fl validator.FieldLevel) bool {
	return !strings.ContainsAny(fl.Field().String(), "\r\n")
}

// validateStruct validates v and converts failures into an InvalidInput error
func validateStruct(op string, v interface{}) error {
	err := structValidate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fe.Namespace()+" failed '"+fe.Tag()+"'")
		}
		return newRiskError(op, KindInvalidInput, "%s", strings.Join(msgs, "; "))
	}
	return newRiskError(op, KindInvalidInput, "%v", err)
}
