package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-cmmn/expr"
	"github.com/goliatone/go-cmmn/model"
)

// CaseInstance is one running case: the root execution plus everything the
// cascade needs to evaluate sentries and report transitions. It is not safe
// for concurrent use; callers serialize access per instance.
type CaseInstance struct {
	id         string
	definition *model.CaseDefinition
	root       *CaseExecution
	cfg        config
	logger     Logger
	sentries   *SentryEvaluator
	sequence   int64
}

// CreateCaseInstance instantiates def. The root is created straight into
// Active, its children are created Available and any child whose entry
// criteria already hold is activated before this returns.
func CreateCaseInstance(ctx context.Context, def *model.CaseDefinition, opts ...Option) (*CaseInstance, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if def == nil || def.Root == nil {
		return nil, cloneRuntimeError(ErrInvalidArgument, "case definition required", nil, nil)
	}

	cfg := newConfig(opts...)
	ci := &CaseInstance{
		definition: def,
		cfg:        cfg,
		sentries:   NewSentryEvaluator(cfg.evaluator),
	}
	ci.root = newCaseExecution(ci, def.Root, nil)
	ci.id = ci.root.id
	ci.logger = WithLoggerFields(cfg.logger, map[string]any{
		FieldCaseInstanceID:   ci.id,
		FieldCaseDefinitionID: def.ID,
	})

	if err := ci.root.fire(ctx, TransitionCreate); err != nil {
		ci.logger.Error("case instance creation failed: %v", err)
		return nil, err
	}
	ci.logger.Info("case instance created")
	return ci, nil
}

// ID returns the case instance id, which is also the root execution id.
func (ci *CaseInstance) ID() string { return ci.id }

// Definition returns the shared case definition.
func (ci *CaseInstance) Definition() *model.CaseDefinition { return ci.definition }

// Root returns the root execution.
func (ci *CaseInstance) Root() *CaseExecution { return ci.root }

// State returns the root state.
func (ci *CaseInstance) State() State { return ci.root.state }

// Variables returns the case-level scope.
func (ci *CaseInstance) Variables() *expr.Variables { return ci.root.variables }

// Snapshot captures the live tree.
func (ci *CaseInstance) Snapshot() Snapshot { return ci.root.Snapshot() }

// FindCaseExecution finds a node of the live tree by runtime id or activity
// id, searching in pre-order.
func (ci *CaseInstance) FindCaseExecution(id string) *CaseExecution {
	id = strings.TrimSpace(id)
	if id == "" || ci.root == nil {
		return nil
	}
	var found *CaseExecution
	ci.root.walk(func(n *CaseExecution) bool {
		if n.id == id || n.ActivityID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Executions lists the live tree in pre-order, root first.
func (ci *CaseInstance) Executions() []*CaseExecution {
	var out []*CaseExecution
	ci.root.walk(func(n *CaseExecution) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Signal reports a standard event raised by a declared external source.
// Sentries waiting on the pair are marked and fired as for internal events.
func (ci *CaseInstance) Signal(ctx context.Context, sourceID string, event model.StandardEvent) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sourceID = strings.TrimSpace(sourceID)
	if !ci.definition.IsExternalSource(sourceID) {
		return cloneRuntimeError(ErrInvalidArgument,
			fmt.Sprintf("%q is not an external source of case %s", sourceID, ci.definition.ID), nil,
			map[string]any{FieldCaseInstanceID: ci.id, "source_id": sourceID})
	}
	if canonical, ok := model.ParseStandardEvent(string(event)); ok {
		event = canonical
	} else {
		return cloneRuntimeError(ErrInvalidArgument,
			fmt.Sprintf("unknown standard event %q", event), nil,
			map[string]any{FieldCaseInstanceID: ci.id, "source_id": sourceID})
	}
	if ci.root.state.IsTerminal() {
		return illegalTransition(ci.root, Transition(event), "case instance is no longer live")
	}
	ci.logger.Debug("external signal %s.%s", sourceID, event)
	return ci.broadcast(ctx, sourceID, event)
}

// SetVariable stores a case-level variable and re-evaluates sentries that
// may depend on it.
func (ci *CaseInstance) SetVariable(ctx context.Context, name string, value any) error {
	ci.root.variables.Set(name, value)
	return ci.Evaluate(ctx)
}

// Evaluate re-checks the entry and exit criteria of every live node. Only
// sentries whose ifPart changed outcome, or whose transition failed
// earlier, can newly fire: onPart observations are consumed once a sentry
// moves its node.
func (ci *CaseInstance) Evaluate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, n := range ci.Executions() {
		if n.discarded || n.state.IsTerminal() {
			continue
		}
		if err := n.evaluateExit(ctx); err != nil {
			return err
		}
		if err := n.evaluateEntry(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (ci *CaseInstance) record(ctx context.Context, ex *CaseExecution, tr Transition, from, to State) {
	ci.sequence++
	evt := TransitionEvent{
		Sequence:       ci.sequence,
		CaseInstanceID: ci.id,
		CaseDefinition: ci.definition.ID,
		ExecutionID:    ex.id,
		ActivityID:     ex.ActivityID(),
		Kind:           ex.Kind(),
		Transition:     tr,
		From:           from,
		To:             to,
		OccurredAt:     ci.cfg.now(),
	}
	if ex.parent != nil {
		evt.ParentID = ex.parent.id
	}
	WithLoggerFields(ci.logger, map[string]any{
		FieldCaseExecutionID: ex.id,
		FieldActivityID:      evt.ActivityID,
		FieldTransition:      string(tr),
		"from":               from.String(),
		"to":                 to.String(),
	}).Debug("case execution transition %s", evt)
	ci.cfg.listeners.notify(ctx, evt, ci.logger)
}
