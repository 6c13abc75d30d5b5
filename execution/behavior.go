package execution

import (
	"context"
	"fmt"

	"github.com/goliatone/go-cmmn/model"
)

// behavior is the per-kind strategy consulted by the transition engine.
// Hooks named before* run after the request is validated and before the
// state is committed; a returned error aborts the transition. The remaining
// hooks run after the commit.
type behavior interface {
	kind() model.BehaviorKind
	supports(tr Transition) bool
	initialState() State

	// activate runs when an entry criterion fires on an Available node.
	activate(ctx context.Context, ex *CaseExecution) error

	beforeComplete(ctx context.Context, ex *CaseExecution, manual bool) error
	beforeTerminate(ctx context.Context, ex *CaseExecution) error

	onCreate(ctx context.Context, ex *CaseExecution) error
	onStart(ctx context.Context, ex *CaseExecution) error
	onSuspend(ctx context.Context, ex *CaseExecution) error
	onResume(ctx context.Context, ex *CaseExecution) error

	shouldAutoComplete(ctx context.Context, ex *CaseExecution) (bool, error)
}

func transitionSet(trs ...Transition) map[Transition]struct{} {
	out := make(map[Transition]struct{}, len(trs))
	for _, tr := range trs {
		out[tr] = struct{}{}
	}
	return out
}

var (
	plannableTransitions = transitionSet(
		TransitionCreate, TransitionEnable, TransitionStart, TransitionManualStart,
		TransitionDisable, TransitionComplete, TransitionManualComplete,
		TransitionTerminate, TransitionExit, TransitionParentTerminate,
		TransitionSuspend, TransitionParentSuspend, TransitionResume, TransitionParentResume,
	)
	occurrenceTransitions = transitionSet(
		TransitionCreate, TransitionOccur,
		TransitionTerminate, TransitionExit, TransitionParentTerminate,
		TransitionSuspend, TransitionParentSuspend, TransitionResume, TransitionParentResume,
	)
	caseTransitions = transitionSet(
		TransitionCreate, TransitionComplete, TransitionManualComplete,
		TransitionTerminate, TransitionExit,
		TransitionSuspend, TransitionResume, TransitionClose,
	)
)

func behaviorFor(kind model.BehaviorKind) behavior {
	switch kind {
	case model.KindCase:
		return caseBehavior{}
	case model.KindStage:
		return stageBehavior{}
	case model.KindMilestone:
		return milestoneBehavior{}
	case model.KindEventListener:
		return eventListenerBehavior{}
	default:
		return taskBehavior{}
	}
}

// baseBehavior provides no-op hooks.
type baseBehavior struct{}

func (baseBehavior) initialState() State { return StateAvailable }

func (baseBehavior) activate(context.Context, *CaseExecution) error { return nil }

func (baseBehavior) beforeComplete(context.Context, *CaseExecution, bool) error { return nil }

func (baseBehavior) beforeTerminate(context.Context, *CaseExecution) error { return nil }

func (baseBehavior) onCreate(context.Context, *CaseExecution) error  { return nil }
func (baseBehavior) onStart(context.Context, *CaseExecution) error   { return nil }
func (baseBehavior) onSuspend(context.Context, *CaseExecution) error { return nil }
func (baseBehavior) onResume(context.Context, *CaseExecution) error  { return nil }

func (baseBehavior) shouldAutoComplete(context.Context, *CaseExecution) (bool, error) {
	return false, nil
}

// activateTask applies the manual activation rule.
func activateTask(ctx context.Context, ex *CaseExecution) error {
	manual, err := ex.instance.sentries.EvaluateRule(ctx, ex, "manual activation rule", ex.activity.ManualActivation, false)
	if err != nil {
		return err
	}
	if manual {
		return ex.fire(ctx, TransitionEnable)
	}
	return ex.fire(ctx, TransitionStart)
}

type taskBehavior struct{ baseBehavior }

func (taskBehavior) kind() model.BehaviorKind { return model.KindTask }

func (taskBehavior) supports(tr Transition) bool {
	_, ok := plannableTransitions[tr]
	return ok
}

func (taskBehavior) activate(ctx context.Context, ex *CaseExecution) error {
	return activateTask(ctx, ex)
}

type milestoneBehavior struct{ baseBehavior }

func (milestoneBehavior) kind() model.BehaviorKind { return model.KindMilestone }

func (milestoneBehavior) supports(tr Transition) bool {
	_, ok := occurrenceTransitions[tr]
	return ok
}

func (milestoneBehavior) activate(ctx context.Context, ex *CaseExecution) error {
	return ex.fire(ctx, TransitionOccur)
}

// eventListenerBehavior stays Available until occur or termination.
type eventListenerBehavior struct{ baseBehavior }

func (eventListenerBehavior) kind() model.BehaviorKind { return model.KindEventListener }

func (eventListenerBehavior) supports(tr Transition) bool {
	_, ok := occurrenceTransitions[tr]
	return ok
}

// containerBehavior owns child executions.
type containerBehavior struct{ baseBehavior }

func (containerBehavior) onCreate(ctx context.Context, ex *CaseExecution) error {
	if ex.state == StateActive {
		return ex.populate(ctx)
	}
	return nil
}

func (containerBehavior) onStart(ctx context.Context, ex *CaseExecution) error {
	return ex.populate(ctx)
}

func (containerBehavior) beforeTerminate(ctx context.Context, ex *CaseExecution) error {
	for _, child := range ex.Children() {
		if !child.isLive() {
			continue
		}
		if err := child.fire(ctx, TransitionParentTerminate); err != nil {
			return err
		}
	}
	return nil
}

func (containerBehavior) onSuspend(ctx context.Context, ex *CaseExecution) error {
	for _, child := range ex.Children() {
		if child.state == StateSuspended || !child.isLive() {
			continue
		}
		if err := child.fire(ctx, TransitionParentSuspend); err != nil {
			return err
		}
	}
	return nil
}

func (containerBehavior) onResume(ctx context.Context, ex *CaseExecution) error {
	if ex.state == StateSuspended {
		return nil
	}
	for _, child := range ex.Children() {
		if child.state != StateSuspended || !child.suspendedByParent {
			continue
		}
		if err := child.fire(ctx, TransitionParentResume); err != nil {
			return err
		}
	}
	return nil
}

func (containerBehavior) beforeComplete(ctx context.Context, ex *CaseExecution, manual bool) error {
	for _, child := range ex.children {
		switch child.state {
		case StateDisabled:
			continue
		case StateActive:
			return illegalTransition(ex, completion(manual), fmt.Sprintf("child %s is active", child.ActivityID()))
		case StateAvailable, StateEnabled, StateSuspended:
			if !manual {
				return illegalTransition(ex, completion(manual), fmt.Sprintf("child %s is %s", child.ActivityID(), child.state))
			}
			required, err := ex.instance.sentries.EvaluateRule(ctx, child, "required rule", child.activity.Required, false)
			if err != nil {
				return err
			}
			if required {
				return illegalTransition(ex, completion(manual), fmt.Sprintf("required child %s is %s", child.ActivityID(), child.state))
			}
		}
	}
	return nil
}

func (containerBehavior) shouldAutoComplete(_ context.Context, ex *CaseExecution) (bool, error) {
	for _, child := range ex.children {
		if child.state != StateDisabled {
			return false, nil
		}
	}
	return true, nil
}

func completion(manual bool) Transition {
	if manual {
		return TransitionManualComplete
	}
	return TransitionComplete
}

type stageBehavior struct{ containerBehavior }

func (stageBehavior) kind() model.BehaviorKind { return model.KindStage }

func (stageBehavior) supports(tr Transition) bool {
	_, ok := plannableTransitions[tr]
	return ok
}

func (stageBehavior) activate(ctx context.Context, ex *CaseExecution) error {
	return activateTask(ctx, ex)
}

// caseBehavior drives the case plan root, which is created straight into
// Active.
type caseBehavior struct{ containerBehavior }

func (caseBehavior) kind() model.BehaviorKind { return model.KindCase }

func (caseBehavior) initialState() State { return StateActive }

func (caseBehavior) supports(tr Transition) bool {
	_, ok := caseTransitions[tr]
	return ok
}
