package model

import "strings"

// Validate checks structural rules of a case definition and builds its
// activity index. Build calls it; callers assembling a CaseDefinition by
// hand must call it before use.
func Validate(def *CaseDefinition) error {
	if def == nil || def.Root == nil {
		return definitionError("", "case definition requires a plan root")
	}
	caseID := strings.TrimSpace(def.ID)
	if caseID == "" {
		return definitionError("", "case definition id is required")
	}
	if def.Root.Kind != KindCase {
		return definitionError(caseID, "plan root %q must be of kind %s", def.Root.ID, KindCase)
	}
	if len(def.Root.EntryCriteria) > 0 {
		return definitionError(caseID, "case plan %q cannot declare entry criteria", def.Root.ID)
	}

	index := make(map[string]*Activity)
	var order []*Activity
	sentries := make(map[string]string)
	var visit func(act *Activity, parent *Activity) error
	visit = func(act *Activity, parent *Activity) error {
		if act == nil {
			return definitionError(caseID, "nil activity under %q", parent.ID)
		}
		if act.ID == "" {
			return definitionError(caseID, "activity id is required")
		}
		if _, exists := index[act.ID]; exists {
			return definitionError(caseID, "duplicate activity id %q", act.ID)
		}
		if parent != nil && act.Kind == KindCase {
			return definitionError(caseID, "activity %q: kind %s is reserved for the plan root", act.ID, KindCase)
		}
		switch act.Kind {
		case KindTask, KindStage, KindMilestone, KindEventListener, KindCase:
		default:
			return definitionError(caseID, "activity %q has unknown kind %q", act.ID, act.Kind)
		}
		if !act.Kind.IsContainer() && len(act.Children) > 0 {
			return definitionError(caseID, "activity %q of kind %s cannot have children", act.ID, act.Kind)
		}
		if act.Kind == KindEventListener && len(act.EntryCriteria) > 0 {
			return definitionError(caseID, "event listener %q cannot declare entry criteria", act.ID)
		}
		index[act.ID] = act
		order = append(order, act)
		for _, s := range act.EntryCriteria {
			if err := registerSentry(caseID, act, s, sentries); err != nil {
				return err
			}
		}
		for _, s := range act.ExitCriteria {
			if err := registerSentry(caseID, act, s, sentries); err != nil {
				return err
			}
			if s.IsVacuous() {
				return definitionError(caseID, "exit sentry %q on %q needs an onPart or an ifPart", s.ID, act.ID)
			}
		}
		for _, child := range act.Children {
			if child != nil && child.parent == nil {
				child.parent = act
			}
			if err := visit(child, act); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(def.Root, nil); err != nil {
		return err
	}

	external := make(map[string]struct{}, len(def.ExternalSources))
	for _, src := range def.ExternalSources {
		if _, clash := index[src]; clash {
			return definitionError(caseID, "external source %q collides with an activity id", src)
		}
		external[src] = struct{}{}
	}

	for _, act := range order {
		for _, group := range [][]*Sentry{act.EntryCriteria, act.ExitCriteria} {
			for _, s := range group {
				for i, part := range s.OnParts {
					evt, ok := ParseStandardEvent(string(part.Event))
					if !ok {
						return definitionError(caseID, "sentry %q on %q: unknown standard event %q", s.ID, act.ID, part.Event)
					}
					s.OnParts[i].Event = evt
					_, known := index[part.SourceID]
					_, ext := external[part.SourceID]
					if !known && !ext {
						return definitionError(caseID, "sentry %q on %q references unknown source %q", s.ID, act.ID, part.SourceID)
					}
				}
			}
		}
	}

	def.index = index
	return nil
}

func registerSentry(caseID string, owner *Activity, s *Sentry, seen map[string]string) error {
	if s == nil {
		return definitionError(caseID, "activity %q declares a nil sentry", owner.ID)
	}
	if s.ID == "" {
		return definitionError(caseID, "activity %q declares a sentry without id", owner.ID)
	}
	if prev, exists := seen[s.ID]; exists {
		return definitionError(caseID, "sentry id %q declared on %q and %q", s.ID, prev, owner.ID)
	}
	seen[s.ID] = owner.ID
	return nil
}
