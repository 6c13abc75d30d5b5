package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-cmmn/model"
)

// TransitionEvent describes one committed transition.
type TransitionEvent struct {
	Sequence       int64
	CaseInstanceID string
	CaseDefinition string
	ExecutionID    string
	ParentID       string
	ActivityID     string
	Kind           model.BehaviorKind
	Transition     Transition
	From           State
	To             State
	OccurredAt     time.Time
}

// String renders the event as `from -transition(activity)-> to`.
func (e TransitionEvent) String() string {
	return fmt.Sprintf("%s -%s(%s)-> %s", e.From, e.Transition, e.ActivityID, e.To)
}

// Listener observes committed transitions in the order they happen.
// Returned errors are logged; a listener can never veto a transition.
type Listener interface {
	Notify(ctx context.Context, evt TransitionEvent) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, evt TransitionEvent) error

// Notify calls f.
func (f ListenerFunc) Notify(ctx context.Context, evt TransitionEvent) error {
	return f(ctx, evt)
}

// Listeners fan-out collection.
type Listeners []Listener

func (ls Listeners) notify(ctx context.Context, evt TransitionEvent, logger Logger) {
	if len(ls) == 0 {
		return
	}
	for idx, l := range ls {
		if l == nil {
			continue
		}
		if err := notifySafely(ctx, l, evt); err != nil {
			logger.Warn("transition listener failed at index=%d: %v", idx, err)
		}
	}
}

func notifySafely(ctx context.Context, l Listener, evt TransitionEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l.Notify(ctx, evt)
}
