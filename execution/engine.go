package execution

import (
	"context"
	"fmt"

	"github.com/goliatone/go-cmmn/model"
)

// fire validates and executes one transition on ex, then runs the cascade
// it implies: sentry broadcast, behavior follow-ups and the parent's
// automatic completion check. Errors raised before the commit leave ex
// untouched; errors raised by the cascade leave committed steps in place.
func (ex *CaseExecution) fire(ctx context.Context, tr Transition) error {
	from := ex.state
	to, err := ex.resolve(tr)
	if err != nil {
		ex.logger().Warn("transition rejected: %v", err)
		return err
	}

	switch tr {
	case TransitionComplete, TransitionManualComplete:
		if err := ex.behavior.beforeComplete(ctx, ex, tr == TransitionManualComplete); err != nil {
			return err
		}
	case TransitionTerminate, TransitionExit, TransitionParentTerminate:
		ex.terminating = true
		err := ex.behavior.beforeTerminate(ctx, ex)
		ex.terminating = false
		if err != nil {
			return err
		}
	}

	ex.commit(ctx, tr, from, to)
	if err := ex.instance.broadcast(ctx, ex.ActivityID(), tr.StandardEvent()); err != nil {
		return err
	}

	if err := ex.afterCommit(ctx, tr); err != nil {
		return err
	}

	if tr.triggersParentCheck() && ex.parent != nil {
		return ex.parent.checkAutoComplete(ctx)
	}
	return nil
}

// resolve checks the request against the lifecycle table and the node's
// behavior and returns the target state.
func (ex *CaseExecution) resolve(tr Transition) (State, error) {
	if ex.discarded {
		return "", illegalTransition(ex, tr, "case execution was discarded with its parent")
	}
	if !ex.behavior.supports(tr) {
		return "", illegalTransition(ex, tr, fmt.Sprintf("not supported by %s", ex.Kind()))
	}
	to, ok := lookupTransition(ex.state, tr)
	if !ok {
		return "", illegalTransition(ex, tr, "")
	}
	switch {
	case tr == TransitionCreate:
		to = ex.behavior.initialState()
	case tr.resumesPrior():
		if tr == TransitionResume && ex.suspendedByParent && ex.parent != nil && ex.parent.state == StateSuspended {
			return "", illegalTransition(ex, tr, "parent is suspended")
		}
		to = ex.priorState
		if to == StateNew {
			return "", illegalTransition(ex, tr, "no state saved at suspend")
		}
	}
	return to, nil
}

// commit applies the new state, detaches terminal nodes and notifies
// listeners.
func (ex *CaseExecution) commit(ctx context.Context, tr Transition, from, to State) {
	ex.state = to
	switch {
	case tr == TransitionSuspend || tr == TransitionParentSuspend:
		ex.priorState = from
		ex.suspendedByParent = tr == TransitionParentSuspend
	case tr.resumesPrior():
		ex.priorState = StateNew
		ex.suspendedByParent = false
	}
	if to.IsTerminal() {
		ex.discardChildren()
		ex.detach()
	}
	ex.instance.record(ctx, ex, tr, from, to)
}

func (ex *CaseExecution) afterCommit(ctx context.Context, tr Transition) error {
	switch tr {
	case TransitionCreate:
		return ex.behavior.onCreate(ctx, ex)
	case TransitionStart, TransitionManualStart:
		return ex.behavior.onStart(ctx, ex)
	case TransitionSuspend, TransitionParentSuspend:
		return ex.behavior.onSuspend(ctx, ex)
	case TransitionResume, TransitionParentResume:
		if err := ex.behavior.onResume(ctx, ex); err != nil {
			return err
		}
		if ex.parent == nil || ex.parent.state == StateActive {
			return ex.evaluateEntry(ctx)
		}
	}
	return nil
}

func (ex *CaseExecution) detach() {
	parent := ex.parent
	if parent == nil {
		return
	}
	for i, child := range parent.children {
		if child == ex {
			parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
			return
		}
	}
}

// discardChildren drops the remaining subtree without emitting transitions.
func (ex *CaseExecution) discardChildren() {
	for _, child := range ex.children {
		child.discarded = true
		child.discardChildren()
	}
	ex.children = nil
}

// populate instantiates the container's children, then evaluates their
// entry criteria in definition order and finally checks whether the
// container can complete right away.
func (ex *CaseExecution) populate(ctx context.Context) error {
	ex.populating = true
	for _, act := range ex.activity.Children {
		child := newCaseExecution(ex.instance, act, ex)
		ex.children = append(ex.children, child)
		if err := child.fire(ctx, TransitionCreate); err != nil {
			ex.populating = false
			return err
		}
	}
	ex.populating = false

	for _, child := range ex.Children() {
		if ex.state != StateActive {
			return nil
		}
		if err := child.evaluateEntry(ctx); err != nil {
			return err
		}
	}
	return ex.checkAutoComplete(ctx)
}

// evaluateEntry activates an Available node whose entry criteria are met.
// A node without entry criteria is activated immediately.
func (ex *CaseExecution) evaluateEntry(ctx context.Context) error {
	if ex.state != StateAvailable || ex.discarded || ex.Kind() == model.KindEventListener {
		return nil
	}
	var sentry *model.Sentry
	if criteria := ex.activity.EntryCriteria; len(criteria) > 0 {
		var err error
		sentry, err = ex.instance.sentries.firstSatisfied(ctx, ex, criteria)
		if err != nil || sentry == nil {
			return err
		}
	}
	return ex.fireSentry(ctx, sentry, false)
}

// fireSentry runs the transition a satisfied sentry implies for ex: the
// behavior's activation for an entry sentry, exit otherwise. The sentry's
// observations are consumed only once ex has left its current state.
func (ex *CaseExecution) fireSentry(ctx context.Context, sentry *model.Sentry, exit bool) error {
	from := ex.state
	var err error
	if exit {
		err = ex.fire(ctx, TransitionExit)
	} else {
		err = ex.behavior.activate(ctx, ex)
	}
	if ex.state != from {
		ex.clearSentry(sentry)
	}
	return err
}

// checkEnable guards a requested enable: the node must require manual
// activation and one of its entry criteria, if any, must hold. It returns
// the sentry the enable consumes.
func (ex *CaseExecution) checkEnable(ctx context.Context) (*model.Sentry, error) {
	manual, err := ex.instance.sentries.EvaluateRule(ctx, ex, "manual activation rule", ex.activity.ManualActivation, false)
	if err != nil {
		return nil, err
	}
	if !manual {
		return nil, illegalTransition(ex, TransitionEnable, "manual activation is not required")
	}
	criteria := ex.activity.EntryCriteria
	if len(criteria) == 0 {
		return nil, nil
	}
	sentry, err := ex.instance.sentries.firstSatisfied(ctx, ex, criteria)
	if err != nil {
		return nil, err
	}
	if sentry == nil {
		return nil, illegalTransition(ex, TransitionEnable, "entry criteria not satisfied")
	}
	return sentry, nil
}

// evaluateExit exits a live node whose exit criteria are met.
func (ex *CaseExecution) evaluateExit(ctx context.Context) error {
	if !ex.isLive() || ex.inTermination() {
		return nil
	}
	if len(ex.activity.ExitCriteria) == 0 {
		return nil
	}
	sentry, err := ex.instance.sentries.firstSatisfied(ctx, ex, ex.activity.ExitCriteria)
	if err != nil || sentry == nil {
		return err
	}
	return ex.fireSentry(ctx, sentry, true)
}

// checkAutoComplete completes an Active container once no child blocks it.
func (ex *CaseExecution) checkAutoComplete(ctx context.Context) error {
	if ex.state != StateActive || ex.discarded || ex.populating || ex.inTermination() {
		return nil
	}
	ok, err := ex.behavior.shouldAutoComplete(ctx, ex)
	if err != nil || !ok {
		return err
	}
	return ex.fire(ctx, TransitionComplete)
}

func (ex *CaseExecution) logger() Logger {
	return WithLoggerFields(ex.instance.logger, correlation(ex))
}

type sentryCandidate struct {
	owner  *CaseExecution
	sentry *model.Sentry
	exit   bool
}

// broadcast delivers a standard event to every listening sentry of the live
// tree. All matching onParts are marked first; the sentries are then
// re-checked and fired in pre-order. A node suspended while Available keeps
// collecting entry observations and evaluates them on resume.
func (ci *CaseInstance) broadcast(ctx context.Context, sourceID string, event model.StandardEvent) error {
	if ci.root == nil {
		return nil
	}
	var candidates []sentryCandidate
	ci.root.walk(func(n *CaseExecution) bool {
		if n.inTermination() {
			return true
		}
		if n.awaitsEntry() {
			for _, s := range n.activity.EntryCriteria {
				if s.Listens(sourceID, event) {
					n.markOnPart(s, model.OnPart{SourceID: sourceID, Event: event})
					candidates = append(candidates, sentryCandidate{owner: n, sentry: s})
				}
			}
		}
		if !n.state.IsTerminal() {
			for _, s := range n.activity.ExitCriteria {
				if s.Listens(sourceID, event) {
					n.markOnPart(s, model.OnPart{SourceID: sourceID, Event: event})
					candidates = append(candidates, sentryCandidate{owner: n, sentry: s, exit: true})
				}
			}
		}
		return true
	})

	for _, c := range candidates {
		owner := c.owner
		if owner.discarded || owner.inTermination() {
			continue
		}
		if c.exit {
			if owner.state.IsTerminal() {
				continue
			}
		} else if owner.state != StateAvailable {
			continue
		}
		ok, err := ci.sentries.IsSatisfied(ctx, c.sentry, owner)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := owner.fireSentry(ctx, c.sentry, c.exit); err != nil {
			return err
		}
	}
	return nil
}
