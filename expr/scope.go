package expr

import (
	"sort"
	"strings"
)

// Scope is a read-only view of variables visible to an expression.
type Scope interface {
	Lookup(name string) (any, bool)
	Names() []string
}

// Variables is a key/value scope chained to an optional parent. Lookups
// fall through to the parent; writes stay local. Not safe for concurrent
// mutation, matching the single-threaded case tree that owns it.
type Variables struct {
	parent Scope
	values map[string]any
}

// NewVariables creates a scope seeded with values.
func NewVariables(parent Scope, values map[string]any) *Variables {
	v := &Variables{parent: parent, values: make(map[string]any, len(values))}
	for k, val := range values {
		v.values[strings.TrimSpace(k)] = val
	}
	return v
}

// Lookup implements Scope.
func (v *Variables) Lookup(name string) (any, bool) {
	if v == nil {
		return nil, false
	}
	name = strings.TrimSpace(name)
	if val, ok := v.values[name]; ok {
		return val, true
	}
	if v.parent != nil {
		return v.parent.Lookup(name)
	}
	return nil, false
}

// Names implements Scope, returning local and inherited names sorted.
func (v *Variables) Names() []string {
	if v == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(v.values))
	if v.parent != nil {
		for _, name := range v.parent.Names() {
			seen[name] = struct{}{}
		}
	}
	for name := range v.values {
		seen[name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Set stores a local variable.
func (v *Variables) Set(name string, value any) {
	if v.values == nil {
		v.values = make(map[string]any)
	}
	v.values[strings.TrimSpace(name)] = value
}

// Delete removes a local variable.
func (v *Variables) Delete(name string) {
	delete(v.values, strings.TrimSpace(name))
}

// Local returns a copy of the variables set directly on this scope.
func (v *Variables) Local() map[string]any {
	out := make(map[string]any, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

// Flatten resolves every visible name into a single map.
func Flatten(scope Scope) map[string]any {
	if scope == nil {
		return map[string]any{}
	}
	names := scope.Names()
	out := make(map[string]any, len(names))
	for _, name := range names {
		if val, ok := scope.Lookup(name); ok {
			out[name] = val
		}
	}
	return out
}
