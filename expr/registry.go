package expr

import (
	"context"
	"fmt"
	"strings"
)

// Condition is a named predicate over a scope.
type Condition func(ctx context.Context, scope Scope) (bool, error)

// Registry stores named conditions. An expression evaluates the condition
// registered under the same name.
type Registry struct {
	conditions map[string]Condition
	namespacer func(string, string) string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conditions: make(map[string]Condition),
		namespacer: defaultNamespace,
	}
}

// SetNamespacer customizes how condition names are namespaced.
func (r *Registry) SetNamespacer(fn func(string, string) string) {
	if fn != nil {
		r.namespacer = fn
	}
}

// Register stores a condition by name.
func (r *Registry) Register(name string, cond Condition) error {
	return r.RegisterNamespaced("", name, cond)
}

// RegisterNamespaced stores a condition using namespace+name.
func (r *Registry) RegisterNamespaced(namespace, name string, cond Condition) error {
	if strings.TrimSpace(name) == "" || cond == nil {
		return nil
	}
	if r.conditions == nil {
		r.conditions = make(map[string]Condition)
	}
	key := strings.TrimSpace(name)
	if r.namespacer != nil {
		key = r.namespacer(namespace, name)
	}
	if _, exists := r.conditions[key]; exists {
		return fmt.Errorf("condition %s already registered", key)
	}
	r.conditions[key] = cond
	return nil
}

// RegisterVariable registers a condition that reads a boolean variable.
func (r *Registry) RegisterVariable(name, variable string) error {
	return r.Register(name, func(_ context.Context, scope Scope) (bool, error) {
		return Truthy(scope, variable)
	})
}

// Lookup retrieves a condition by name.
func (r *Registry) Lookup(name string) (Condition, bool) {
	if r == nil {
		return nil, false
	}
	cond, ok := r.conditions[strings.TrimSpace(name)]
	return cond, ok
}

// Evaluate implements Evaluator. Unknown names yield ErrNotHandled.
func (r *Registry) Evaluate(ctx context.Context, expression string, scope Scope) (bool, error) {
	cond, ok := r.Lookup(expression)
	if !ok {
		return false, ErrNotHandled
	}
	return cond(ctx, scope)
}

// Truthy reads a variable that must hold a bool. Missing variables are false.
func Truthy(scope Scope, name string) (bool, error) {
	if scope == nil {
		return false, nil
	}
	val, ok := scope.Lookup(name)
	if !ok || val == nil {
		return false, nil
	}
	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("variable %s is %T, not bool", name, val)
	}
	return b, nil
}

func defaultNamespace(namespace, id string) string {
	ns := strings.TrimSpace(namespace)
	ident := strings.TrimSpace(id)
	if ns == "" {
		return ident
	}
	return ns + "::" + ident
}
