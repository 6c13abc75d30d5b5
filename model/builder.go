package model

import "strings"

// CaseBuilder assembles a case definition with a fluent API.
type CaseBuilder struct {
	*ActivityBuilder
	name     string
	version  string
	external []string
}

// ActivityBuilder configures one activity and, for containers, its children.
type ActivityBuilder struct {
	act      Activity
	children []*ActivityBuilder
}

// NewCase starts a case definition whose plan root has the given id.
func NewCase(id string) *CaseBuilder {
	return &CaseBuilder{
		ActivityBuilder: &ActivityBuilder{act: Activity{ID: id, Kind: KindCase}},
	}
}

// Named sets the case display name.
func (b *CaseBuilder) Named(name string) *CaseBuilder {
	b.name = name
	b.act.Name = name
	return b
}

// Version sets the case definition version.
func (b *CaseBuilder) Version(version string) *CaseBuilder {
	b.version = version
	return b
}

// External declares ids of pseudo-activities living outside the plan whose
// events the embedding engine signals explicitly.
func (b *CaseBuilder) External(ids ...string) *CaseBuilder {
	b.external = append(b.external, ids...)
	return b
}

// Build validates the definition and freezes it.
func (b *CaseBuilder) Build() (*CaseDefinition, error) {
	root := b.ActivityBuilder.build(nil)
	def := &CaseDefinition{
		ID:              strings.TrimSpace(root.ID),
		Name:            strings.TrimSpace(b.name),
		Version:         strings.TrimSpace(b.version),
		Root:            root,
		ExternalSources: normalizeIDs(b.external),
	}
	if def.Name == "" {
		def.Name = def.ID
	}
	if def.Version == "" {
		def.Version = "v1"
	}
	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

// Task adds a child task.
func (b *ActivityBuilder) Task(id string) *ActivityBuilder { return b.add(id, KindTask) }

// Stage adds a child stage.
func (b *ActivityBuilder) Stage(id string) *ActivityBuilder { return b.add(id, KindStage) }

// Milestone adds a child milestone.
func (b *ActivityBuilder) Milestone(id string) *ActivityBuilder { return b.add(id, KindMilestone) }

// EventListener adds a child event listener.
func (b *ActivityBuilder) EventListener(id string) *ActivityBuilder {
	return b.add(id, KindEventListener)
}

// Child adds a child of an explicit kind.
func (b *ActivityBuilder) Child(id string, kind BehaviorKind) *ActivityBuilder {
	return b.add(id, kind)
}

func (b *ActivityBuilder) add(id string, kind BehaviorKind) *ActivityBuilder {
	child := &ActivityBuilder{act: Activity{ID: id, Kind: kind}}
	b.children = append(b.children, child)
	return child
}

// Name sets the activity display name.
func (b *ActivityBuilder) Name(name string) *ActivityBuilder {
	b.act.Name = name
	return b
}

// Manual requires explicit manualStart after the activity is enabled.
func (b *ActivityBuilder) Manual() *ActivityBuilder {
	b.act.ManualActivation = ConstantRule(true)
	return b
}

// ManualWhen makes manual activation depend on an expression.
func (b *ActivityBuilder) ManualWhen(expr string) *ActivityBuilder {
	b.act.ManualActivation = ExpressionRule(expr)
	return b
}

// Required marks the activity as required for its container.
func (b *ActivityBuilder) Required() *ActivityBuilder {
	b.act.Required = ConstantRule(true)
	return b
}

// RequiredWhen makes the required rule depend on an expression.
func (b *ActivityBuilder) RequiredWhen(expr string) *ActivityBuilder {
	b.act.Required = ExpressionRule(expr)
	return b
}

// RepeatWhen attaches a repetition rule.
func (b *ActivityBuilder) RepeatWhen(expr string) *ActivityBuilder {
	b.act.Repetition = ExpressionRule(expr)
	return b
}

// Entry adds an entry criterion waiting on every given onPart.
func (b *ActivityBuilder) Entry(sentryID string, parts ...OnPart) *ActivityBuilder {
	return b.EntryIf(sentryID, "", parts...)
}

// EntryIf adds an entry criterion with an ifPart.
func (b *ActivityBuilder) EntryIf(sentryID, ifPart string, parts ...OnPart) *ActivityBuilder {
	b.act.EntryCriteria = append(b.act.EntryCriteria, newSentry(sentryID, ifPart, parts))
	return b
}

// Exit adds an exit criterion waiting on every given onPart.
func (b *ActivityBuilder) Exit(sentryID string, parts ...OnPart) *ActivityBuilder {
	return b.ExitIf(sentryID, "", parts...)
}

// ExitIf adds an exit criterion with an ifPart.
func (b *ActivityBuilder) ExitIf(sentryID, ifPart string, parts ...OnPart) *ActivityBuilder {
	b.act.ExitCriteria = append(b.act.ExitCriteria, newSentry(sentryID, ifPart, parts))
	return b
}

// On builds an onPart.
func On(sourceID string, event StandardEvent) OnPart {
	return OnPart{SourceID: strings.TrimSpace(sourceID), Event: event}
}

func newSentry(id, ifPart string, parts []OnPart) *Sentry {
	return &Sentry{
		ID:      strings.TrimSpace(id),
		OnParts: append([]OnPart(nil), parts...),
		IfPart:  strings.TrimSpace(ifPart),
	}
}

func (b *ActivityBuilder) build(parent *Activity) *Activity {
	act := b.act
	act.ID = strings.TrimSpace(act.ID)
	act.Name = strings.TrimSpace(act.Name)
	act.EntryCriteria = append([]*Sentry(nil), b.act.EntryCriteria...)
	act.ExitCriteria = append([]*Sentry(nil), b.act.ExitCriteria...)
	act.Children = nil
	act.parent = parent
	out := &act
	for _, child := range b.children {
		out.Children = append(out.Children, child.build(out))
	}
	return out
}

func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
