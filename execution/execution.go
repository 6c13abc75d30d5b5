package execution

import (
	"context"
	"fmt"

	"github.com/goliatone/go-cmmn/expr"
	"github.com/goliatone/go-cmmn/model"
)

// CaseExecution is the runtime counterpart of an activity definition. A
// node is owned by its parent's child list while it is live; once it
// completes or terminates it is detached and only its back-reference to
// the parent remains.
type CaseExecution struct {
	id       string
	activity *model.Activity
	behavior behavior
	instance *CaseInstance
	parent   *CaseExecution
	children []*CaseExecution

	state             State
	priorState        State
	suspendedByParent bool
	terminating       bool
	populating        bool
	discarded         bool

	// sentry id -> onParts observed since the sentry last fired
	satisfied map[string]map[model.OnPart]struct{}
	variables *expr.Variables
}

func newCaseExecution(ci *CaseInstance, act *model.Activity, parent *CaseExecution) *CaseExecution {
	var parentScope expr.Scope
	if parent != nil {
		parentScope = parent.variables
	}
	ex := &CaseExecution{
		id:        ci.cfg.idGenerator(),
		activity:  act,
		behavior:  behaviorFor(act.Kind),
		instance:  ci,
		parent:    parent,
		state:     StateNew,
		satisfied: make(map[string]map[model.OnPart]struct{}),
	}
	if parent == nil {
		ex.variables = expr.NewVariables(nil, ci.cfg.variables)
	} else {
		ex.variables = expr.NewVariables(parentScope, nil)
	}
	return ex
}

// ID returns the runtime identifier.
func (ex *CaseExecution) ID() string { return ex.id }

// ActivityID returns the definition id.
func (ex *CaseExecution) ActivityID() string {
	if ex == nil || ex.activity == nil {
		return ""
	}
	return ex.activity.ID
}

// Activity returns the shared definition.
func (ex *CaseExecution) Activity() *model.Activity { return ex.activity }

// Kind returns the behavior kind.
func (ex *CaseExecution) Kind() model.BehaviorKind { return ex.activity.Kind }

// State returns the current lifecycle state.
func (ex *CaseExecution) State() State { return ex.state }

// PriorState returns the state saved by the last suspend, empty otherwise.
func (ex *CaseExecution) PriorState() State { return ex.priorState }

// Parent returns the enclosing execution, nil for the case instance root.
func (ex *CaseExecution) Parent() *CaseExecution { return ex.parent }

// CaseInstance returns the owning case instance.
func (ex *CaseExecution) CaseInstance() *CaseInstance { return ex.instance }

// Children returns a copy of the live child list.
func (ex *CaseExecution) Children() []*CaseExecution {
	return append([]*CaseExecution(nil), ex.children...)
}

// Variables returns the node scope. Lookups fall through to the parent.
func (ex *CaseExecution) Variables() *expr.Variables { return ex.variables }

// SetVariable stores a local variable and re-evaluates ifPart-only sentries.
func (ex *CaseExecution) SetVariable(ctx context.Context, name string, value any) error {
	ex.variables.Set(name, value)
	return ex.instance.Evaluate(ctx)
}

// IsCaseInstance reports whether this node is the tree root.
func (ex *CaseExecution) IsCaseInstance() bool { return ex.parent == nil }

func (ex *CaseExecution) IsAvailable() bool  { return ex.state == StateAvailable }
func (ex *CaseExecution) IsEnabled() bool    { return ex.state == StateEnabled }
func (ex *CaseExecution) IsDisabled() bool   { return ex.state == StateDisabled }
func (ex *CaseExecution) IsActive() bool     { return ex.state == StateActive }
func (ex *CaseExecution) IsCompleted() bool  { return ex.state == StateCompleted }
func (ex *CaseExecution) IsTerminated() bool { return ex.state == StateTerminated }
func (ex *CaseExecution) IsSuspended() bool  { return ex.state == StateSuspended }
func (ex *CaseExecution) IsClosed() bool     { return ex.state == StateClosed }

// Enable moves an Available node to Enabled. The node must require manual
// activation and, when it has entry criteria, one of them must be satisfied.
func (ex *CaseExecution) Enable(ctx context.Context) error {
	if _, err := ex.resolve(TransitionEnable); err != nil {
		ex.logger().Warn("transition rejected: %v", err)
		return err
	}
	sentry, err := ex.checkEnable(ctx)
	if err != nil {
		ex.logger().Warn("transition rejected: %v", err)
		return err
	}
	err = ex.fire(ctx, TransitionEnable)
	if ex.state != StateAvailable {
		ex.clearSentry(sentry)
	}
	return err
}

// ManualStart activates an Enabled node.
func (ex *CaseExecution) ManualStart(ctx context.Context) error {
	return ex.fire(ctx, TransitionManualStart)
}

// Disable moves an Enabled node to Disabled.
func (ex *CaseExecution) Disable(ctx context.Context) error {
	return ex.fire(ctx, TransitionDisable)
}

// Complete performs automatic completion. Containers refuse while any child
// is Available, Enabled, Active or Suspended.
func (ex *CaseExecution) Complete(ctx context.Context) error {
	return ex.fire(ctx, TransitionComplete)
}

// ManualComplete performs user-forced completion. Containers refuse only
// while a child is Active or a required child is still pending; every other
// child is discarded.
func (ex *CaseExecution) ManualComplete(ctx context.Context) error {
	return ex.fire(ctx, TransitionManualComplete)
}

// Terminate terminates the node after terminating all of its children.
func (ex *CaseExecution) Terminate(ctx context.Context) error {
	return ex.fire(ctx, TransitionTerminate)
}

// Occur completes a milestone or event listener directly.
func (ex *CaseExecution) Occur(ctx context.Context) error {
	return ex.fire(ctx, TransitionOccur)
}

// Suspend suspends the node and, for containers, its live children.
func (ex *CaseExecution) Suspend(ctx context.Context) error {
	return ex.fire(ctx, TransitionSuspend)
}

// Resume restores the state saved by the last suspend.
func (ex *CaseExecution) Resume(ctx context.Context) error {
	return ex.fire(ctx, TransitionResume)
}

// Close archives a completed, terminated or suspended case instance.
func (ex *CaseExecution) Close(ctx context.Context) error {
	return ex.fire(ctx, TransitionClose)
}

// Apply requests a public transition by name.
func (ex *CaseExecution) Apply(ctx context.Context, tr Transition) error {
	switch tr {
	case TransitionEnable:
		return ex.Enable(ctx)
	case TransitionManualStart:
		return ex.ManualStart(ctx)
	case TransitionDisable:
		return ex.Disable(ctx)
	case TransitionComplete:
		return ex.Complete(ctx)
	case TransitionManualComplete:
		return ex.ManualComplete(ctx)
	case TransitionTerminate:
		return ex.Terminate(ctx)
	case TransitionOccur:
		return ex.Occur(ctx)
	case TransitionSuspend:
		return ex.Suspend(ctx)
	case TransitionResume:
		return ex.Resume(ctx)
	case TransitionClose:
		return ex.Close(ctx)
	default:
		return cloneRuntimeError(ErrInvalidArgument,
			fmt.Sprintf("transition %q cannot be requested directly", tr), nil, correlation(ex))
	}
}

// FindCaseExecution searches the live tree of the owning case instance by
// runtime id or activity id. Detached nodes are never returned.
func (ex *CaseExecution) FindCaseExecution(id string) *CaseExecution {
	return ex.instance.FindCaseExecution(id)
}

// AllowedTransitions lists the transitions structurally legal right now.
// Container completion checks and the enable guard are not applied.
func (ex *CaseExecution) AllowedTransitions() []Transition {
	if ex.discarded {
		return nil
	}
	var out []Transition
	seen := make(map[Transition]struct{})
	for _, rule := range transitionsTable {
		if rule.From != ex.state || rule.Transition == TransitionCreate {
			continue
		}
		if !ex.behavior.supports(rule.Transition) {
			continue
		}
		if _, dup := seen[rule.Transition]; dup {
			continue
		}
		seen[rule.Transition] = struct{}{}
		out = append(out, rule.Transition)
	}
	return out
}

// Snapshot is an immutable view of a node and its live descendants.
type Snapshot struct {
	ExecutionID string             `json:"execution_id"`
	ActivityID  string             `json:"activity_id"`
	Kind        model.BehaviorKind `json:"kind"`
	State       State              `json:"state"`
	Children    []Snapshot         `json:"children,omitempty"`
}

// Snapshot captures the node subtree.
func (ex *CaseExecution) Snapshot() Snapshot {
	snap := Snapshot{
		ExecutionID: ex.id,
		ActivityID:  ex.ActivityID(),
		Kind:        ex.Kind(),
		State:       ex.state,
	}
	for _, child := range ex.children {
		snap.Children = append(snap.Children, child.Snapshot())
	}
	return snap
}

// awaitsEntry reports whether entry observations are collected for ex: it
// is Available, or was Available when it got suspended.
func (ex *CaseExecution) awaitsEntry() bool {
	return ex.state == StateAvailable || ex.state == StateSuspended && ex.priorState == StateAvailable
}

// inTermination reports whether this node or an ancestor is terminating.
func (ex *CaseExecution) inTermination() bool {
	for n := ex; n != nil; n = n.parent {
		if n.terminating {
			return true
		}
	}
	return false
}

func (ex *CaseExecution) isLive() bool {
	return !ex.discarded && ex.state != StateNew && !ex.state.IsTerminal()
}

// walk visits ex and its live descendants in pre-order.
func (ex *CaseExecution) walk(fn func(*CaseExecution) bool) bool {
	if !fn(ex) {
		return false
	}
	for _, child := range ex.children {
		if !child.walk(fn) {
			return false
		}
	}
	return true
}
