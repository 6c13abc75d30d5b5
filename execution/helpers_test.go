package execution

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/goliatone/go-cmmn/model"
)

type recordingListener struct {
	events []TransitionEvent
}

func (r *recordingListener) Notify(_ context.Context, evt TransitionEvent) error {
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingListener) lines() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.String())
	}
	return out
}

func (r *recordingListener) reset() { r.events = nil }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("ex-%d", n)
	}
}

func mustBuild(t *testing.T, b *model.CaseBuilder) *model.CaseDefinition {
	t.Helper()
	def, err := b.Build()
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	return def
}

func mustCreate(t *testing.T, def *model.CaseDefinition, opts ...Option) (*CaseInstance, *recordingListener) {
	t.Helper()
	rec := &recordingListener{}
	opts = append([]Option{WithListeners(rec), WithIDGenerator(sequentialIDs())}, opts...)
	ci, err := CreateCaseInstance(context.Background(), def, opts...)
	if err != nil {
		t.Fatalf("create case instance: %v", err)
	}
	return ci, rec
}

func mustFind(t *testing.T, ci *CaseInstance, id string) *CaseExecution {
	t.Helper()
	ex := ci.FindCaseExecution(id)
	if ex == nil {
		t.Fatalf("expected live case execution %s", id)
	}
	return ex
}

func expectLog(t *testing.T, rec *recordingListener, want ...string) {
	t.Helper()
	got := rec.lines()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected transition log\n got:\n  %s\nwant:\n  %s",
			strings.Join(got, "\n  "), strings.Join(want, "\n  "))
	}
}

func expectState(t *testing.T, ex *CaseExecution, want State) {
	t.Helper()
	if ex.State() != want {
		t.Fatalf("expected %s to be %s, got %s", ex.ActivityID(), want, ex.State())
	}
}

func expectIllegal(t *testing.T, err error) *TransitionError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if !IsIllegalTransition(err) {
		t.Fatalf("expected %s, got %v (code %q)", ErrCodeIllegalStateTransition, err, ErrorCode(err))
	}
	te, ok := AsTransitionError(err)
	if !ok {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	return te
}
