package model

import "strings"

// BehaviorKind selects the runtime behavior of an activity.
type BehaviorKind string

const (
	KindTask          BehaviorKind = "task"
	KindStage         BehaviorKind = "stage"
	KindMilestone     BehaviorKind = "milestone"
	KindEventListener BehaviorKind = "event_listener"
	KindCase          BehaviorKind = "case"
)

// ParseBehaviorKind normalizes a kind name. The case kind is reserved for
// the case plan root and is not accepted here.
func ParseBehaviorKind(s string) (BehaviorKind, bool) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "task", "human_task", "process_task", "case_task":
		return KindTask, true
	case "stage":
		return KindStage, true
	case "milestone":
		return KindMilestone, true
	case "event_listener", "eventlistener", "user_event_listener", "timer_event_listener":
		return KindEventListener, true
	default:
		return "", false
	}
}

// IsContainer reports whether activities of this kind own children.
func (k BehaviorKind) IsContainer() bool {
	return k == KindStage || k == KindCase
}

// Rule is a boolean activity rule: either a constant or an expression
// handed to the expression evaluator.
type Rule struct {
	Expression string
	Value      bool
}

// ConstantRule returns a rule that always evaluates to v.
func ConstantRule(v bool) *Rule {
	return &Rule{Value: v}
}

// ExpressionRule returns a rule evaluated through the expression evaluator.
func ExpressionRule(expr string) *Rule {
	return &Rule{Expression: strings.TrimSpace(expr)}
}

// IsConstant reports whether the rule carries no expression.
func (r *Rule) IsConstant() bool {
	return r == nil || strings.TrimSpace(r.Expression) == ""
}

// OnPart is a single (source, event) pair a sentry waits on.
type OnPart struct {
	SourceID string
	Event    StandardEvent
}

func (p OnPart) String() string {
	return p.SourceID + "." + string(p.Event)
}

// Sentry is an entry or exit criterion.
type Sentry struct {
	ID      string
	OnParts []OnPart
	IfPart  string
}

// IsVacuous reports whether the sentry has neither onParts nor an ifPart.
func (s *Sentry) IsVacuous() bool {
	return s == nil || (len(s.OnParts) == 0 && strings.TrimSpace(s.IfPart) == "")
}

// HasIfPart reports whether an ifPart expression is declared.
func (s *Sentry) HasIfPart() bool {
	return s != nil && strings.TrimSpace(s.IfPart) != ""
}

// Listens reports whether one of the sentry's onParts matches the pair.
func (s *Sentry) Listens(sourceID string, event StandardEvent) bool {
	if s == nil {
		return false
	}
	for _, part := range s.OnParts {
		if part.SourceID == sourceID && part.Event == event {
			return true
		}
	}
	return false
}

// Activity is an immutable plan item definition. Instances are shared by
// every running case of the same definition and must not be mutated after
// Build.
type Activity struct {
	ID               string
	Name             string
	Kind             BehaviorKind
	ManualActivation *Rule
	Required         *Rule
	Repetition       *Rule
	EntryCriteria    []*Sentry
	ExitCriteria     []*Sentry
	Children         []*Activity

	parent *Activity
}

// Parent returns the enclosing activity, nil for the case plan root.
func (a *Activity) Parent() *Activity {
	if a == nil {
		return nil
	}
	return a.parent
}

// DisplayName returns Name, falling back to ID.
func (a *Activity) DisplayName() string {
	if a == nil {
		return ""
	}
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return a.ID
}

// CaseDefinition is a validated, immutable case plan.
type CaseDefinition struct {
	ID              string
	Name            string
	Version         string
	Root            *Activity
	ExternalSources []string

	index map[string]*Activity
}

// Activity finds an activity (or the root) by definition id.
func (d *CaseDefinition) Activity(id string) (*Activity, bool) {
	if d == nil {
		return nil, false
	}
	act, ok := d.index[strings.TrimSpace(id)]
	return act, ok
}

// Activities lists every activity in pre-order, root first.
func (d *CaseDefinition) Activities() []*Activity {
	if d == nil || d.Root == nil {
		return nil
	}
	var out []*Activity
	var walk func(*Activity)
	walk = func(a *Activity) {
		out = append(out, a)
		for _, child := range a.Children {
			walk(child)
		}
	}
	walk(d.Root)
	return out
}

// IsExternalSource reports whether id was declared as an external event source.
func (d *CaseDefinition) IsExternalSource(id string) bool {
	if d == nil {
		return false
	}
	for _, src := range d.ExternalSources {
		if src == id {
			return true
		}
	}
	return false
}
