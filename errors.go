package cmmn

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	ErrCodeExecutionNotFound  = "CASE_EXECUTION_NOT_FOUND"
	ErrCodeDefinitionNotFound = "CASE_DEFINITION_NOT_FOUND"
	ErrCodeDefinitionConflict = "CASE_DEFINITION_CONFLICT"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodePanic              = "CASE_ENGINE_PANIC"
)

var (
	// ErrValidation marks request validation failures. Clones keep its
	// text code.
	ErrValidation = errors.New("validation error", errors.CategoryValidation).
			WithTextCode(ErrCodeValidation)
	ErrExecutionNotFound = errors.New("case execution not found", errors.CategoryNotFound).
				WithTextCode(ErrCodeExecutionNotFound)
	ErrDefinitionNotFound = errors.New("case definition not found", errors.CategoryNotFound).
				WithTextCode(ErrCodeDefinitionNotFound)
	ErrDefinitionConflict = errors.New("case definition already deployed", errors.CategoryConflict).
				WithTextCode(ErrCodeDefinitionConflict)
	ErrPanic = errors.New("recovered from panic", errors.CategoryInternal).
			WithTextCode(ErrCodePanic)
)

func engineError(base *errors.Error, format string, args ...any) *errors.Error {
	err := base.Clone()
	if msg := strings.TrimSpace(fmt.Sprintf(format, args...)); msg != "" {
		err.Message = msg
	}
	return err
}

func notFound(base *errors.Error, kind, id string) *errors.Error {
	return engineError(base, "%s %q not found", kind, id).
		WithMetadata(map[string]any{"id": id})
}
