// Package expr is the boundary between the case engine and whatever
// evaluates sentry ifParts and activity rules.
package expr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Evaluator evaluates a boolean expression against a variable scope. It
// must be synchronous and free of side effects.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, scope Scope) (bool, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, expression string, scope Scope) (bool, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, expression string, scope Scope) (bool, error) {
	return f(ctx, expression, scope)
}

// ErrNotHandled is returned by evaluators that do not recognise an
// expression, letting a Chain try the next one.
var ErrNotHandled = errors.New("expression not handled")

// Chain tries each evaluator in order until one handles the expression.
type Chain []Evaluator

// Evaluate implements Evaluator.
func (c Chain) Evaluate(ctx context.Context, expression string, scope Scope) (bool, error) {
	for _, ev := range c {
		if ev == nil {
			continue
		}
		ok, err := ev.Evaluate(ctx, expression, scope)
		if errors.Is(err, ErrNotHandled) {
			continue
		}
		return ok, err
	}
	return false, fmt.Errorf("no evaluator handles expression %q", expression)
}

// Literal evaluates "true" and "false" and declines everything else.
var Literal = EvaluatorFunc(func(_ context.Context, expression string, _ Scope) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(expression)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, ErrNotHandled
	}
})
