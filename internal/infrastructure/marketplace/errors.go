package marketplace

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationCause names the field or concern the marketplace rejected.
type ValidationCause string

const (
	CauseTitle       ValidationCause = "title"
	CausePrice       ValidationCause = "price"
	CauseCategory    ValidationCause = "category"
	CauseImage       ValidationCause = "image"
	CauseDescription ValidationCause = "description"
	CauseAttributes  ValidationCause = "attributes"
	CauseAuth        ValidationCause = "auth"
	CauseUnknown     ValidationCause = "unknown"
)

// ValidationError is a marketplace rejection of a create/update payload.
// Some causes have a known automatic fix (resending without the offending
// field); the reconciler attempts that exactly once.
type ValidationError struct {
	Cause   ValidationCause
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("marketplace validation failed (%s): %s", e.Cause, e.Message)
}

// AsValidationError extracts a ValidationError when err carries one.
func AsValidationError(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	ok := errors.As(err, &validationErr)

	return validationErr, ok
}

// classifyCause maps the marketplace error payload onto a cause.
func classifyCause(schema errorSchema) ValidationCause {
	probe := strings.ToLower(schema.Field + " " + schema.Code + " " + schema.Message)

	for _, cause := range []ValidationCause{
		CauseTitle, CausePrice, CauseCategory,
		CauseImage, CauseDescription, CauseAttributes,
	} {
		if strings.Contains(probe, string(cause)) {
			return cause
		}
	}

	if strings.Contains(probe, "auth") || strings.Contains(probe, "token") {
		return CauseAuth
	}

	return CauseUnknown
}
