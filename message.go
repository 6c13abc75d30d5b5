package cmmn

import (
	"context"
	"reflect"
	"regexp"
	"strings"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-cmmn/execution"
	"github.com/goliatone/go-cmmn/model"
)

// Message is the interface engine requests implement.
type Message interface {
	Type() string
	Validate() error
}

// Commander executes side effects.
type Commander[T any] interface {
	Execute(ctx context.Context, msg T) error
}

// CommandFunc lets a function act as a Commander.
type CommandFunc[T any] func(ctx context.Context, msg T) error

// Execute calls the underlying function
func (f CommandFunc[T]) Execute(ctx context.Context, msg T) error {
	return f(ctx, msg)
}

// Querier returns data with no side effects.
type Querier[T any, R any] interface {
	Query(ctx context.Context, msg T) (R, error)
}

// QueryFunc lets a function act as a Querier.
type QueryFunc[T any, R any] func(ctx context.Context, msg T) (R, error)

// Query calls the underlying function
func (f QueryFunc[T, R]) Query(ctx context.Context, msg T) (R, error) {
	return f(ctx, msg)
}

// TransitionRequest asks for a public transition on one node of a case
// instance. ExecutionID accepts a runtime id or an activity id; empty
// targets the root.
type TransitionRequest struct {
	InstanceID  string               `json:"instance_id"`
	ExecutionID string               `json:"execution_id,omitempty"`
	Transition  execution.Transition `json:"transition"`
}

func (TransitionRequest) Type() string { return "cmmn::transition_request" }

func (r TransitionRequest) Validate() error {
	if strings.TrimSpace(r.InstanceID) == "" {
		return validationError(r, "instance_id required")
	}
	if _, ok := execution.ParseTransition(string(r.Transition)); !ok {
		return validationError(r, "unknown transition %q", r.Transition)
	}
	return nil
}

// SignalRequest reports an event raised by an external source.
type SignalRequest struct {
	InstanceID string              `json:"instance_id"`
	SourceID   string              `json:"source_id"`
	Event      model.StandardEvent `json:"event"`
}

func (SignalRequest) Type() string { return "cmmn::signal_request" }

func (r SignalRequest) Validate() error {
	if strings.TrimSpace(r.InstanceID) == "" {
		return validationError(r, "instance_id required")
	}
	if strings.TrimSpace(r.SourceID) == "" {
		return validationError(r, "source_id required")
	}
	if _, ok := model.ParseStandardEvent(string(r.Event)); !ok {
		return validationError(r, "unknown event %q", r.Event)
	}
	return nil
}

// VariableRequest sets a case-level variable.
type VariableRequest struct {
	InstanceID string `json:"instance_id"`
	Name       string `json:"name"`
	Value      any    `json:"value"`
}

func (VariableRequest) Type() string { return "cmmn::variable_request" }

func (r VariableRequest) Validate() error {
	if strings.TrimSpace(r.InstanceID) == "" {
		return validationError(r, "instance_id required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return validationError(r, "name required")
	}
	return nil
}

// SnapshotQuery reads the live tree of a case instance.
type SnapshotQuery struct {
	InstanceID string `json:"instance_id"`
}

func (SnapshotQuery) Type() string { return "cmmn::snapshot_query" }

func (q SnapshotQuery) Validate() error {
	if strings.TrimSpace(q.InstanceID) == "" {
		return validationError(q, "instance_id required")
	}
	return nil
}

func validationError(msg any, format string, args ...any) error {
	return engineError(ErrValidation, format, args...).
		WithMetadata(map[string]any{"message_type": GetMessageType(msg)})
}

// IsNilMessage reports whether msg is nil or a nil pointer.
func IsNilMessage(msg any) bool {
	if msg == nil {
		return true
	}
	v := reflect.ValueOf(msg)
	if v.Kind() != reflect.Ptr {
		return false
	}
	return v.IsNil()
}

// ValidateMessage rejects nil messages and runs Validate.
func ValidateMessage(msg any) error {
	if IsNilMessage(msg) {
		return errors.New("nil message pointer", errors.CategoryValidation).
			WithTextCode("INVALID_MESSAGE")
	}
	if m, ok := msg.(Message); ok {
		return m.Validate()
	}
	return nil
}

// GetMessageType returns msg.Type() or a package-qualified snake case name.
func GetMessageType(msg any) string {
	if IsNilMessage(msg) {
		return "unknown_type"
	}
	if typer, ok := msg.(interface{ Type() string }); ok {
		return typer.Type()
	}

	t := reflect.TypeOf(msg)
	typeName := t.Name()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
		typeName = t.Name()
	}
	pkgPath := t.PkgPath()
	if pkgPath != "" {
		parts := strings.Split(pkgPath, "/")
		pkgPath = parts[len(parts)-1]
	}
	name := toSnakeCase(typeName)
	if pkgPath == "" {
		return name
	}
	return pkgPath + "::" + name
}

var camelBoundary = regexp.MustCompile("([a-z0-9])([A-Z])")

func toSnakeCase(s string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(s, "${1}_${2}"))
}
