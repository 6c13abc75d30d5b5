package execution

import (
	"strings"

	"github.com/goliatone/go-cmmn/model"
)

// State is a case execution lifecycle state.
type State string

const (
	// StateNew is the pseudo-state before create.
	StateNew        State = ""
	StateAvailable  State = "available"
	StateEnabled    State = "enabled"
	StateDisabled   State = "disabled"
	StateActive     State = "active"
	StateCompleted  State = "completed"
	StateTerminated State = "terminated"
	StateSuspended  State = "suspended"
	StateClosed     State = "closed"

	// StatePrior is the target of resume rows in the lifecycle table. It
	// stands for the state saved at suspend and is never held by a node.
	StatePrior State = "prior"
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "()"
	case StatePrior:
		return "(prior state)"
	}
	return string(s)
}

// IsTerminal reports whether a node in this state has left its parent.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateTerminated || s == StateClosed
}

// Transition names a lifecycle transition request.
type Transition string

const (
	TransitionCreate          Transition = "create"
	TransitionEnable          Transition = "enable"
	TransitionDisable         Transition = "disable"
	TransitionStart           Transition = "start"
	TransitionManualStart     Transition = "manualStart"
	TransitionComplete        Transition = "complete"
	TransitionManualComplete  Transition = "manualComplete"
	TransitionTerminate       Transition = "terminate"
	TransitionExit            Transition = "exit"
	TransitionParentTerminate Transition = "parentTerminate"
	TransitionOccur           Transition = "occur"
	TransitionSuspend         Transition = "suspend"
	TransitionParentSuspend   Transition = "parentSuspend"
	TransitionResume          Transition = "resume"
	TransitionParentResume    Transition = "parentResume"
	TransitionClose           Transition = "close"
)

func (t Transition) String() string { return string(t) }

// StandardEvent is the event broadcast to sentries after the transition.
func (t Transition) StandardEvent() model.StandardEvent {
	if t == TransitionManualComplete {
		return model.EventComplete
	}
	return model.StandardEvent(t)
}

// triggersParentCheck reports whether the transition may leave the parent
// eligible for automatic completion.
func (t Transition) triggersParentCheck() bool {
	switch t {
	case TransitionComplete, TransitionManualComplete, TransitionOccur,
		TransitionTerminate, TransitionExit, TransitionDisable:
		return true
	default:
		return false
	}
}

// resumesPrior marks transitions whose target is the state saved at suspend.
func (t Transition) resumesPrior() bool {
	return t == TransitionResume || t == TransitionParentResume
}

// TransitionRule is one row of the lifecycle table.
type TransitionRule struct {
	From       State
	Transition Transition
	To         State
}

var live = []State{StateAvailable, StateEnabled, StateDisabled, StateActive}

var transitionsTable = buildTransitionsTable()

func buildTransitionsTable() []TransitionRule {
	rules := []TransitionRule{
		{From: StateNew, Transition: TransitionCreate, To: StateAvailable},
		{From: StateAvailable, Transition: TransitionEnable, To: StateEnabled},
		{From: StateAvailable, Transition: TransitionStart, To: StateActive},
		{From: StateEnabled, Transition: TransitionManualStart, To: StateActive},
		{From: StateEnabled, Transition: TransitionDisable, To: StateDisabled},

		{From: StateAvailable, Transition: TransitionTerminate, To: StateTerminated},
		{From: StateEnabled, Transition: TransitionTerminate, To: StateTerminated},
		{From: StateActive, Transition: TransitionTerminate, To: StateTerminated},

		{From: StateActive, Transition: TransitionComplete, To: StateCompleted},
		{From: StateActive, Transition: TransitionManualComplete, To: StateCompleted},

		{From: StateAvailable, Transition: TransitionOccur, To: StateCompleted},
		{From: StateEnabled, Transition: TransitionOccur, To: StateCompleted},
		{From: StateActive, Transition: TransitionOccur, To: StateCompleted},

		{From: StateSuspended, Transition: TransitionResume, To: StatePrior},
		{From: StateSuspended, Transition: TransitionParentResume, To: StatePrior},

		{From: StateCompleted, Transition: TransitionClose, To: StateClosed},
		{From: StateTerminated, Transition: TransitionClose, To: StateClosed},
		{From: StateSuspended, Transition: TransitionClose, To: StateClosed},
	}
	for _, from := range live {
		rules = append(rules,
			TransitionRule{From: from, Transition: TransitionSuspend, To: StateSuspended},
			TransitionRule{From: from, Transition: TransitionParentSuspend, To: StateSuspended},
		)
	}
	for _, from := range append(live, StateSuspended) {
		rules = append(rules,
			TransitionRule{From: from, Transition: TransitionExit, To: StateTerminated},
			TransitionRule{From: from, Transition: TransitionParentTerminate, To: StateTerminated},
		)
	}
	return rules
}

// TransitionRules returns a copy of the lifecycle table. Resume rows target
// StatePrior.
func TransitionRules() []TransitionRule {
	return append([]TransitionRule(nil), transitionsTable...)
}

// lookupTransition returns the allowed target for from+tr.
func lookupTransition(from State, tr Transition) (State, bool) {
	for _, rule := range transitionsTable {
		if rule.From == from && rule.Transition == tr {
			return rule.To, true
		}
	}
	return "", false
}

var publicTransitions = []Transition{
	TransitionEnable,
	TransitionManualStart,
	TransitionDisable,
	TransitionComplete,
	TransitionManualComplete,
	TransitionTerminate,
	TransitionOccur,
	TransitionSuspend,
	TransitionResume,
	TransitionClose,
}

// PublicTransitions lists the transitions callers may request directly.
// The rest are only fired by the engine itself.
func PublicTransitions() []Transition {
	return append([]Transition(nil), publicTransitions...)
}

// ParseTransition matches s against the public transitions, ignoring case.
func ParseTransition(s string) (Transition, bool) {
	s = strings.TrimSpace(s)
	for _, tr := range publicTransitions {
		if strings.EqualFold(string(tr), s) {
			return tr, true
		}
	}
	return "", false
}
