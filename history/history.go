// Package history persists the transition log of case instances. A Recorder
// is registered as an execution listener and appends every committed
// transition to a Store.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-cmmn/execution"
)

// ErrStoreNotConfigured is returned by stores built without a backend.
var ErrStoreNotConfigured = errors.New("history store not configured")

// Entry is one persisted transition.
type Entry struct {
	Sequence       int64     `json:"sequence"`
	CaseInstanceID string    `json:"case_instance_id"`
	CaseDefinition string    `json:"case_definition"`
	ExecutionID    string    `json:"execution_id"`
	ParentID       string    `json:"parent_id,omitempty"`
	ActivityID     string    `json:"activity_id"`
	Kind           string    `json:"kind"`
	Transition     string    `json:"transition"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// FromEvent converts a transition event.
func FromEvent(evt execution.TransitionEvent) Entry {
	return Entry{
		Sequence:       evt.Sequence,
		CaseInstanceID: evt.CaseInstanceID,
		CaseDefinition: evt.CaseDefinition,
		ExecutionID:    evt.ExecutionID,
		ParentID:       evt.ParentID,
		ActivityID:     evt.ActivityID,
		Kind:           string(evt.Kind),
		Transition:     string(evt.Transition),
		From:           string(evt.From),
		To:             string(evt.To),
		OccurredAt:     evt.OccurredAt.UTC(),
	}
}

// String renders the entry in transition log format.
func (e Entry) String() string {
	return fmt.Sprintf("%s -%s(%s)-> %s", execution.State(e.From), e.Transition, e.ActivityID, execution.State(e.To))
}

// Store persists entries per case instance, ordered by sequence.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, caseInstanceID string) ([]Entry, error)
	Delete(ctx context.Context, caseInstanceID string) error
}

// Recorder is an execution.Listener writing to a Store.
type Recorder struct {
	store Store
}

// NewRecorder wraps store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Notify implements execution.Listener.
func (r *Recorder) Notify(ctx context.Context, evt execution.TransitionEvent) error {
	if r == nil || r.store == nil {
		return ErrStoreNotConfigured
	}
	return r.store.Append(ctx, FromEvent(evt))
}

// Lines renders entries in transition log format.
func Lines(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.String())
	}
	return out
}

func validateEntry(entry Entry) error {
	if strings.TrimSpace(entry.CaseInstanceID) == "" {
		return errors.New("history entry case instance id required")
	}
	return nil
}
