package expr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// CUEEvaluator evaluates expressions as CUE with scope variables in
// lexical scope, e.g. `amount > 100 && approved`.
type CUEEvaluator struct {
	mu  sync.Mutex
	ctx *cue.Context
}

// NewCUEEvaluator builds an evaluator with its own CUE context.
func NewCUEEvaluator() *CUEEvaluator {
	return &CUEEvaluator{ctx: cuecontext.New()}
}

// Evaluate implements Evaluator. Unresolved references and non-boolean
// results are errors.
func (e *CUEEvaluator) Evaluate(_ context.Context, expression string, scope Scope) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false, fmt.Errorf("empty expression")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		e.ctx = cuecontext.New()
	}

	vars := e.ctx.Encode(Flatten(scope))
	if err := vars.Err(); err != nil {
		return false, fmt.Errorf("encode scope: %w", err)
	}
	v := e.ctx.CompileString(expression, cue.Scope(vars))
	if err := v.Err(); err != nil {
		return false, fmt.Errorf("compile %q: %w", expression, err)
	}
	b, err := v.Bool()
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expression, err)
	}
	return b, nil
}
