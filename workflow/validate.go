package workflow

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// check validates an operation input and folds the failures into one
// ValidationError naming every offending field.
func check(op string, in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return invalid(op, "%v", err)
	}
	parts := make([]string, 0, len(ves))
	for _, fe := range ves {
		if fe.Param() != "" {
			parts = append(parts, fe.Namespace()+" failed "+fe.Tag()+"="+fe.Param())
		} else {
			parts = append(parts, fe.Namespace()+" failed "+fe.Tag())
		}
	}
	return invalid(op, "%s", strings.Join(parts, "; "))
}
