package naming

import (
	"errors"
	"fmt"
	"strings"

	"dialectic/internal/types"
)

// MissingContextFieldError reports which required naming primitives
// were absent for the selected file type. Construction never falls
// back to a partial or ambiguous name.
type MissingContextFieldError struct {
	FileType types.FileType
	Fields   []string
}

func (e *MissingContextFieldError) Error() string {
	return fmt.Sprintf("missing required context field(s) for %s: %s",
		e.FileType, strings.Join(e.Fields, ", "))
}

// IsMissingContextField reports whether err is (or wraps) a
// MissingContextFieldError.
func IsMissingContextField(err error) bool {
	var me *MissingContextFieldError
	return errors.As(err, &me)
}
