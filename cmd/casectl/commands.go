package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-cmmn"
	"github.com/goliatone/go-cmmn/dispatcher"
	"github.com/goliatone/go-cmmn/execution"
	"github.com/goliatone/go-cmmn/expr"
	"github.com/goliatone/go-cmmn/history"
	"github.com/goliatone/go-cmmn/model"
)

type validateCmd struct {
	Files []string `arg:"" name:"file" help:"Case definition files (YAML or JSON)."`
}

func (c *validateCmd) CLIOptions() cliConfig {
	return cliConfig{
		Name:        "validate",
		Description: "Validate case definition files.",
		Group:       "Definitions",
		Aliases:     []string{"check"},
	}
}

func (c *validateCmd) Run(app *appContext) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(app.out)
	tw.AppendHeader(table.Row{"File", "Case", "Name", "Version", "Activities", "External"})
	for _, file := range c.Files {
		defs, err := loadDefinitions(file)
		if err != nil {
			return err
		}
		for _, id := range sortedIDs(defs) {
			def := defs[id]
			tw.AppendRow(table.Row{
				file,
				def.ID,
				def.Name,
				def.Version,
				len(def.Activities()) - 1,
				strings.Join(def.ExternalSources, ","),
			})
		}
	}
	tw.Render()
	return nil
}

type runCmd struct {
	File      string   `arg:"" name:"file" help:"Case definition file (YAML or JSON)." type:"existingfile"`
	Case      string   `short:"c" help:"Case definition id. Defaults to the only case in the file."`
	Step      []string `short:"s" sep:"none" help:"Step to apply, in order: <target>:<transition>, @<source>:<event> or $<name>=<value>. An empty target addresses the case."`
	Var       []string `sep:"none" help:"Initial case variable as <name>=<value>. Values are parsed as YAML scalars."`
	History   string   `default:"memory" help:"History backend: memory, sqlite:<path> or redis:<addr>."`
	Format    string   `default:"log" enum:"log,table,json" help:"Output format for the transition history."`
	KeepGoing bool     `name:"keep-going" help:"Report rejected steps and continue."`
}

func (c *runCmd) CLIOptions() cliConfig {
	return cliConfig{
		Name:        "run",
		Description: "Create a case instance and apply a scripted sequence of steps.",
		Group:       "Execution",
		Aliases:     []string{"replay"},
	}
}

func (c *runCmd) Run(app *appContext) error {
	defs, err := loadDefinitions(c.File)
	if err != nil {
		return err
	}
	def, err := pickDefinition(defs, c.Case)
	if err != nil {
		return err
	}
	vars, err := parseVariables(c.Var)
	if err != nil {
		return err
	}

	store, closeStore, err := openHistory(c.History)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := cmmn.NewEngine(
		cmmn.WithEngineLogger(app.logger),
		cmmn.WithInstanceOptions(
			execution.WithEvaluator(expr.Chain{expr.Literal, expr.NewCUEEvaluator()}),
			execution.WithListeners(history.NewRecorder(store)),
		),
	)
	if err := engine.Deploy(def); err != nil {
		return err
	}
	bus := dispatcher.NewDispatcher(dispatcher.WithExitOnError(), dispatcher.WithLogger(app.logger))
	dispatcher.Bind(bus, engine)

	ci, err := engine.CreateInstance(app.ctx, def.ID, vars)
	if err != nil {
		return err
	}

	for i, raw := range c.Step {
		if err := c.apply(app, bus, ci.ID(), raw); err != nil {
			if !c.KeepGoing {
				failed := errors.New(fmt.Sprintf("step %d (%s) failed: %v", i+1, raw, err), errors.CategoryHandler).
					WithTextCode("CASECTL_STEP_FAILED").
					WithMetadata(map[string]any{"step_index": i + 1, "step": raw})
				failed.Source = err
				return failed
			}
			fmt.Fprintf(app.out, "step %d (%s) rejected: %v\n", i+1, raw, err)
		}
	}

	entries, err := store.List(app.ctx, ci.ID())
	if err != nil {
		return err
	}
	if err := renderHistory(app, c.Format, entries); err != nil {
		return err
	}

	snap, err := dispatcher.Query[cmmn.SnapshotQuery, execution.Snapshot](app.ctx, bus, cmmn.SnapshotQuery{InstanceID: ci.ID()})
	if err != nil {
		return err
	}
	if c.Format != "json" {
		renderSnapshot(app, snap)
	}
	return nil
}

func (c *runCmd) apply(app *appContext, bus *dispatcher.Dispatcher, instanceID, raw string) error {
	step := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(step, "$"):
		name, value, err := parseAssignment(strings.TrimPrefix(step, "$"))
		if err != nil {
			return err
		}
		return dispatcher.Dispatch(app.ctx, bus, cmmn.VariableRequest{InstanceID: instanceID, Name: name, Value: value})
	case strings.HasPrefix(step, "@"):
		source, event, ok := strings.Cut(strings.TrimPrefix(step, "@"), ":")
		if !ok {
			return stepError(raw, "signal steps take the form @<source>:<event>")
		}
		return dispatcher.Dispatch(app.ctx, bus, cmmn.SignalRequest{
			InstanceID: instanceID,
			SourceID:   strings.TrimSpace(source),
			Event:      model.StandardEvent(strings.TrimSpace(event)),
		})
	default:
		target, transition, ok := strings.Cut(step, ":")
		if !ok {
			return stepError(raw, "transition steps take the form <target>:<transition>")
		}
		tr, known := execution.ParseTransition(transition)
		if !known {
			tr = execution.Transition(strings.TrimSpace(transition))
		}
		return dispatcher.Dispatch(app.ctx, bus, cmmn.TransitionRequest{
			InstanceID:  instanceID,
			ExecutionID: strings.TrimSpace(target),
			Transition:  tr,
		})
	}
}

type statesCmd struct {
	From string `help:"Only list rules leaving this state."`
}

func (c *statesCmd) CLIOptions() cliConfig {
	return cliConfig{
		Name:        "states",
		Description: "Print the case execution lifecycle table.",
		Group:       "Reference",
	}
}

func (c *statesCmd) Run(app *appContext) error {
	public := make(map[execution.Transition]bool)
	for _, tr := range execution.PublicTransitions() {
		public[tr] = true
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(app.out)
	tw.AppendHeader(table.Row{"From", "Transition", "To", "Public"})
	for _, rule := range execution.TransitionRules() {
		if c.From != "" && !strings.EqualFold(c.From, string(rule.From)) {
			continue
		}
		tw.AppendRow(table.Row{rule.From.String(), rule.Transition.String(), rule.To.String(), public[rule.Transition]})
	}
	tw.Render()
	return nil
}

func loadDefinitions(path string) (map[string]*model.CaseDefinition, error) {
	set, err := model.LoadCaseSet(path)
	if err != nil {
		return nil, err
	}
	return set.BuildAll()
}

func pickDefinition(defs map[string]*model.CaseDefinition, id string) (*model.CaseDefinition, error) {
	if id = strings.TrimSpace(id); id != "" {
		def, ok := defs[id]
		if !ok {
			return nil, errors.New(fmt.Sprintf("case %q not found in file", id), errors.CategoryNotFound).
				WithTextCode("CASECTL_CASE_NOT_FOUND").
				WithMetadata(map[string]any{"case": id, "available": sortedIDs(defs)})
		}
		return def, nil
	}
	if len(defs) != 1 {
		return nil, errors.New("file holds several cases, pick one with --case", errors.CategoryBadInput).
			WithTextCode("CASECTL_CASE_REQUIRED").
			WithMetadata(map[string]any{"available": sortedIDs(defs)})
	}
	for _, def := range defs {
		return def, nil
	}
	return nil, nil
}

func parseVariables(raw []string) (map[string]any, error) {
	vars := make(map[string]any, len(raw))
	for _, item := range raw {
		name, value, err := parseAssignment(item)
		if err != nil {
			return nil, err
		}
		vars[name] = value
	}
	return vars, nil
}

func parseAssignment(raw string) (string, any, error) {
	name, text, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, stepError(raw, "assignments take the form <name>=<value>")
	}
	var value any
	if err := yaml.Unmarshal([]byte(text), &value); err != nil {
		return "", nil, errors.Wrap(err, errors.CategoryBadInput, fmt.Sprintf("invalid value for %s", name)).
			WithTextCode("CASECTL_INVALID_VALUE")
	}
	return name, value, nil
}

func stepError(raw, msg string) error {
	return errors.New(msg, errors.CategoryBadInput).
		WithTextCode("CASECTL_INVALID_STEP").
		WithMetadata(map[string]any{"step": raw})
}

func renderHistory(app *appContext, format string, entries []history.Entry) error {
	switch format {
	case "json":
		enc := json.NewEncoder(app.out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "table":
		tw := table.NewWriter()
		tw.SetOutputMirror(app.out)
		tw.AppendHeader(table.Row{"#", "Activity", "Kind", "Transition", "From", "To"})
		for _, e := range entries {
			tw.AppendRow(table.Row{e.Sequence, e.ActivityID, e.Kind, e.Transition, execution.State(e.From).String(), e.To})
		}
		tw.Render()
	default:
		for _, line := range history.Lines(entries) {
			fmt.Fprintln(app.out, line)
		}
	}
	return nil
}

func renderSnapshot(app *appContext, snap execution.Snapshot) {
	tw := table.NewWriter()
	tw.SetOutputMirror(app.out)
	tw.AppendHeader(table.Row{"Activity", "Kind", "State", "Execution"})
	var walk func(execution.Snapshot, int)
	walk = func(s execution.Snapshot, depth int) {
		tw.AppendRow(table.Row{strings.Repeat("  ", depth) + s.ActivityID, s.Kind, s.State, s.ExecutionID})
		for _, child := range s.Children {
			walk(child, depth+1)
		}
	}
	walk(snap, 0)
	tw.Render()
}

func sortedIDs(defs map[string]*model.CaseDefinition) []string {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
