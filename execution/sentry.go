package execution

import (
	"context"

	"github.com/goliatone/go-cmmn/expr"
	"github.com/goliatone/go-cmmn/model"
)

// SentryEvaluator decides whether a sentry is satisfied for its owner.
// OnPart observations are stored on the owning node; the ifPart is only
// evaluated once every onPart has been observed.
type SentryEvaluator struct {
	evaluator expr.Evaluator
}

// NewSentryEvaluator wraps an expression evaluator.
func NewSentryEvaluator(evaluator expr.Evaluator) *SentryEvaluator {
	if evaluator == nil {
		evaluator = expr.Literal
	}
	return &SentryEvaluator{evaluator: evaluator}
}

// IsSatisfied reports whether all onParts have been observed on owner and
// the ifPart, when present, evaluates to true. A sentry with neither is
// always satisfied.
func (s *SentryEvaluator) IsSatisfied(ctx context.Context, sentry *model.Sentry, owner *CaseExecution) (bool, error) {
	if sentry == nil || sentry.IsVacuous() {
		return true, nil
	}
	if len(sentry.OnParts) > 0 {
		seen := owner.satisfied[sentry.ID]
		for _, part := range sentry.OnParts {
			if _, ok := seen[part]; !ok {
				return false, nil
			}
		}
	}
	if !sentry.HasIfPart() {
		return true, nil
	}
	ok, err := s.evaluator.Evaluate(ctx, sentry.IfPart, owner.variables)
	if err != nil {
		return false, expressionFailed(owner, "sentry "+sentry.ID, sentry.IfPart, err)
	}
	return ok, nil
}

// EvaluateRule resolves a constant or expression rule in the owner's scope.
// A nil rule yields def.
func (s *SentryEvaluator) EvaluateRule(ctx context.Context, owner *CaseExecution, what string, rule *model.Rule, def bool) (bool, error) {
	if rule == nil {
		return def, nil
	}
	if rule.IsConstant() {
		return rule.Value, nil
	}
	ok, err := s.evaluator.Evaluate(ctx, rule.Expression, owner.variables)
	if err != nil {
		return false, expressionFailed(owner, what, rule.Expression, err)
	}
	return ok, nil
}

// firstSatisfied returns the first satisfied sentry of criteria.
func (s *SentryEvaluator) firstSatisfied(ctx context.Context, owner *CaseExecution, criteria []*model.Sentry) (*model.Sentry, error) {
	for _, sentry := range criteria {
		ok, err := s.IsSatisfied(ctx, sentry, owner)
		if err != nil {
			return nil, err
		}
		if ok {
			return sentry, nil
		}
	}
	return nil, nil
}

func (ex *CaseExecution) markOnPart(sentry *model.Sentry, part model.OnPart) {
	seen := ex.satisfied[sentry.ID]
	if seen == nil {
		seen = make(map[model.OnPart]struct{}, len(sentry.OnParts))
		ex.satisfied[sentry.ID] = seen
	}
	seen[part] = struct{}{}
}

// clearSentry forgets observations once a sentry fires.
func (ex *CaseExecution) clearSentry(sentry *model.Sentry) {
	if sentry != nil {
		delete(ex.satisfied, sentry.ID)
	}
}
