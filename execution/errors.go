package execution

import (
	stderrors "errors"
	"fmt"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeIllegalStateTransition = "CASE_ILLEGAL_STATE_TRANSITION"
	ErrCodeExpressionFailed       = "CASE_EXPRESSION_FAILED"
	ErrCodeInvalidArgument        = "CASE_INVALID_ARGUMENT"
)

var (
	ErrIllegalStateTransition = apperrors.New("illegal state transition", apperrors.CategoryBadInput).
					WithTextCode(ErrCodeIllegalStateTransition)
	ErrExpressionFailed = apperrors.New("expression evaluation failed", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeExpressionFailed)
	ErrInvalidArgument = apperrors.New("invalid argument", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidArgument)
)

// TransitionError reports a rejected transition request. It unwraps to a
// coded *apperrors.Error.
type TransitionError struct {
	ExecutionID string
	ActivityID  string
	State       State
	Transition  Transition
	Reason      string

	err *apperrors.Error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s case execution %s (%s): state is %s",
		e.Transition, e.ExecutionID, e.ActivityID, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap exposes the coded error.
func (e *TransitionError) Unwrap() error {
	return e.err
}

// Code returns the error text code.
func (e *TransitionError) Code() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.TextCode
}

func illegalTransition(ex *CaseExecution, tr Transition, reason string) *TransitionError {
	meta := correlation(ex)
	meta["transition"] = string(tr)
	meta["current_state"] = string(ex.state)
	if reason != "" {
		meta["reason"] = reason
	}
	te := &TransitionError{
		ExecutionID: ex.id,
		ActivityID:  ex.ActivityID(),
		State:       ex.state,
		Transition:  tr,
		Reason:      reason,
	}
	te.err = cloneRuntimeError(ErrIllegalStateTransition, te.Error(), nil, meta)
	return te
}

// ExpressionError wraps an evaluator failure. Both the evaluator's error
// and the coded error are reachable through errors.Is and errors.As.
type ExpressionError struct {
	ExecutionID string
	ActivityID  string
	Expression  string
	Err         error

	coded *apperrors.Error
}

func (e *ExpressionError) Error() string {
	return e.coded.Message
}

// Unwrap exposes the evaluator error and the coded error.
func (e *ExpressionError) Unwrap() []error {
	return []error{e.Err, e.coded}
}

func expressionFailed(ex *CaseExecution, what, expression string, source error) *ExpressionError {
	meta := correlation(ex)
	meta["expression"] = expression
	meta["evaluating"] = what
	return &ExpressionError{
		ExecutionID: ex.id,
		ActivityID:  ex.ActivityID(),
		Expression:  expression,
		Err:         source,
		coded: cloneRuntimeError(
			ErrExpressionFailed,
			fmt.Sprintf("evaluate %s %q on %s: %v", what, expression, ex.ActivityID(), source),
			source,
			meta,
		),
	}
}

func cloneRuntimeError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrIllegalStateTransition
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of a coded error in err's chain.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsIllegalTransition reports whether err rejects a transition request.
func IsIllegalTransition(err error) bool {
	return ErrorCode(err) == ErrCodeIllegalStateTransition
}

// AsTransitionError extracts the typed transition error from err.
func AsTransitionError(err error) (*TransitionError, bool) {
	var te *TransitionError
	if stderrors.As(err, &te) {
		return te, true
	}
	return nil, false
}
