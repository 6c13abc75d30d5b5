// Package cmmn embeds the case execution runtime: it keeps deployed case
// definitions, creates case instances from them and serializes every call
// that touches one instance.
package cmmn

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-cmmn/execution"
	"github.com/goliatone/go-cmmn/model"
)

// Engine is safe for concurrent use. Calls on different case instances run
// in parallel; calls on the same instance are serialized.
type Engine struct {
	mu          sync.RWMutex
	definitions map[string]*model.CaseDefinition
	instances   map[string]*instanceEntry

	logger       execution.Logger
	instanceOpts []execution.Option
	recoverPanic func(funcName string, errp *error, fields ...map[string]any)
}

type instanceEntry struct {
	mu       sync.Mutex
	instance *execution.CaseInstance
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger. Instances inherit it unless an
// instance option overrides it.
func WithEngineLogger(logger execution.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithInstanceOptions appends options applied to every created instance.
func WithInstanceOptions(opts ...execution.Option) EngineOption {
	return func(e *Engine) {
		e.instanceOpts = append(e.instanceOpts, opts...)
	}
}

// WithPanicLogger overrides how recovered panics are reported.
func WithPanicLogger(logger PanicLogger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.recoverPanic = MakePanicHandler(logger)
		}
	}
}

// NewEngine creates an empty engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		definitions: make(map[string]*model.CaseDefinition),
		instances:   make(map[string]*instanceEntry),
		logger:      execution.NewNopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.recoverPanic == nil {
		e.recoverPanic = MakePanicHandler(LoggerPanicLogger(e.logger))
	}
	return e
}

// Deploy registers a validated definition under its id.
func (e *Engine) Deploy(def *model.CaseDefinition) error {
	if def == nil {
		return engineError(ErrValidation, "case definition required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.definitions[def.ID]; exists {
		return engineError(ErrDefinitionConflict, "case definition %q already deployed", def.ID).
			WithMetadata(map[string]any{"case_definition_id": def.ID})
	}
	e.definitions[def.ID] = def
	e.logger.Info("case definition deployed id=%s version=%s", def.ID, def.Version)
	return nil
}

// DeployCaseSet builds and deploys every case of set.
func (e *Engine) DeployCaseSet(set model.CaseSet) error {
	defs, err := set.BuildAll()
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := e.Deploy(defs[id]); err != nil {
			return err
		}
	}
	return nil
}

// Definition returns a deployed definition.
func (e *Engine) Definition(id string) (*model.CaseDefinition, error) {
	id = strings.TrimSpace(id)
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.definitions[id]
	if !ok {
		return nil, notFound(ErrDefinitionNotFound, "case definition", id)
	}
	return def, nil
}

// Definitions lists deployed definition ids in order.
func (e *Engine) Definitions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.definitions))
	for id := range e.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateInstance instantiates a deployed definition. vars seed the case
// scope; opts are applied after the engine-wide instance options.
func (e *Engine) CreateInstance(ctx context.Context, definitionID string, vars map[string]any, opts ...execution.Option) (ci *execution.CaseInstance, err error) {
	defer e.recoverPanic("CreateInstance", &err, map[string]any{"case_definition_id": definitionID})

	def, err := e.Definition(definitionID)
	if err != nil {
		return nil, err
	}
	all := []execution.Option{execution.WithLogger(e.logger)}
	all = append(all, e.instanceOpts...)
	if len(vars) > 0 {
		all = append(all, execution.WithVariables(vars))
	}
	all = append(all, opts...)

	ci, err = execution.CreateCaseInstance(ctx, def, all...)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.instances[ci.ID()] = &instanceEntry{instance: ci}
	e.mu.Unlock()
	return ci, nil
}

// Instances lists registered case instance ids in order.
func (e *Engine) Instances() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.instances))
	for id := range e.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) entry(instanceID string) (*instanceEntry, error) {
	instanceID = strings.TrimSpace(instanceID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.instances[instanceID]
	if !ok {
		return nil, notFound(ErrExecutionNotFound, "case instance", instanceID)
	}
	return entry, nil
}

// Do runs fn with exclusive access to one case instance. Panics raised by
// fn are recovered and returned as errors.
func (e *Engine) Do(ctx context.Context, instanceID string, fn func(context.Context, *execution.CaseInstance) error) (err error) {
	entry, err := e.entry(instanceID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	defer e.recoverPanic("Do", &err, map[string]any{"case_instance_id": instanceID})
	if fn == nil {
		return nil
	}
	return fn(ctx, entry.instance)
}

// Execute implements Commander for transition requests.
func (e *Engine) Execute(ctx context.Context, req TransitionRequest) error {
	if err := ValidateMessage(req); err != nil {
		return err
	}
	tr, _ := execution.ParseTransition(string(req.Transition))
	return e.Do(ctx, req.InstanceID, func(ctx context.Context, ci *execution.CaseInstance) error {
		target := ci.Root()
		if id := strings.TrimSpace(req.ExecutionID); id != "" {
			target = ci.FindCaseExecution(id)
			if target == nil {
				return notFound(ErrExecutionNotFound, "case execution", id).
					WithMetadata(map[string]any{"case_instance_id": ci.ID()})
			}
		}
		return target.Apply(ctx, tr)
	})
}

// Signal forwards an external source event to a case instance.
func (e *Engine) Signal(ctx context.Context, req SignalRequest) error {
	if err := ValidateMessage(req); err != nil {
		return err
	}
	return e.Do(ctx, req.InstanceID, func(ctx context.Context, ci *execution.CaseInstance) error {
		return ci.Signal(ctx, req.SourceID, req.Event)
	})
}

// SetVariable stores a case-level variable and re-evaluates sentries.
func (e *Engine) SetVariable(ctx context.Context, req VariableRequest) error {
	if err := ValidateMessage(req); err != nil {
		return err
	}
	return e.Do(ctx, req.InstanceID, func(ctx context.Context, ci *execution.CaseInstance) error {
		return ci.SetVariable(ctx, req.Name, req.Value)
	})
}

// Query implements Querier for snapshots.
func (e *Engine) Query(ctx context.Context, q SnapshotQuery) (execution.Snapshot, error) {
	var snap execution.Snapshot
	if err := ValidateMessage(q); err != nil {
		return snap, err
	}
	err := e.Do(ctx, q.InstanceID, func(_ context.Context, ci *execution.CaseInstance) error {
		snap = ci.Snapshot()
		return nil
	})
	return snap, err
}

// Close closes the root of a case instance and forgets it.
func (e *Engine) Close(ctx context.Context, instanceID string) error {
	err := e.Do(ctx, instanceID, func(ctx context.Context, ci *execution.CaseInstance) error {
		return ci.Root().Close(ctx)
	})
	if err != nil {
		return err
	}
	e.Forget(instanceID)
	return nil
}

// Forget drops a case instance from the registry.
func (e *Engine) Forget(instanceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.instances, strings.TrimSpace(instanceID))
}

var (
	_ Commander[TransitionRequest]               = (*Engine)(nil)
	_ Querier[SnapshotQuery, execution.Snapshot] = (*Engine)(nil)
)
