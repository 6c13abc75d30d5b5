package model

import (
	"fmt"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeDefinitionInvalid = "CASE_DEFINITION_INVALID"
)

// ErrDefinitionInvalid marks build-time definition problems.
var ErrDefinitionInvalid = apperrors.New("invalid case definition", apperrors.CategoryValidation).
	WithTextCode(ErrCodeDefinitionInvalid)

func definitionError(caseID, format string, args ...any) *apperrors.Error {
	err := ErrDefinitionInvalid.Clone()
	err.Message = strings.TrimSpace(fmt.Sprintf(format, args...))
	if caseID != "" {
		err = err.WithMetadata(map[string]any{"case_definition_id": caseID})
	}
	return err
}
