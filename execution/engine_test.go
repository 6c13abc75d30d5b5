package execution

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/goliatone/go-cmmn/expr"
	"github.com/goliatone/go-cmmn/model"
)

func TestSentryWaitsForEveryOnPart(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	b.Task("A")
	b.Task("B")
	b.Task("C").Entry("afterAB", model.On("A", model.EventComplete), model.On("B", model.EventComplete))
	ci, rec := mustCreate(t, mustBuild(t, b))

	c := mustFind(t, ci, "C")
	expectState(t, c, StateAvailable)

	if err := mustFind(t, ci, "A").Complete(ctx); err != nil {
		t.Fatalf("complete A: %v", err)
	}
	expectState(t, c, StateAvailable)
	expectState(t, ci.Root(), StateActive)

	rec.reset()
	if err := mustFind(t, ci, "B").Complete(ctx); err != nil {
		t.Fatalf("complete B: %v", err)
	}
	expectState(t, c, StateActive)
	expectLog(t, rec,
		"active -complete(B)-> completed",
		"available -start(C)-> active",
	)
	if len(c.satisfied) != 0 {
		t.Fatalf("expected sentry observations to be cleared after firing")
	}
}

func TestManualCompleteOnTaskBroadcastsComplete(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	b.Task("A")
	b.Milestone("M").Entry("done", model.On("A", model.EventComplete))
	ci, rec := mustCreate(t, mustBuild(t, b))
	rec.reset()

	if err := mustFind(t, ci, "A").ManualComplete(ctx); err != nil {
		t.Fatalf("manual complete A: %v", err)
	}
	expectLog(t, rec,
		"active -manualComplete(A)-> completed",
		"available -occur(M)-> completed",
		"active -complete(Case)-> completed",
	)
}

func TestMilestoneWithoutEntryOccursImmediately(t *testing.T) {
	b := model.NewCase("Case")
	b.Milestone("M")
	b.Task("A")
	ci, rec := mustCreate(t, mustBuild(t, b))

	expectLog(t, rec,
		"() -create(Case)-> active",
		"() -create(M)-> available",
		"() -create(A)-> available",
		"available -occur(M)-> completed",
		"available -start(A)-> active",
	)
	expectState(t, ci.Root(), StateActive)
}

func TestEventListenerWaitsForOccur(t *testing.T) {
	b := model.NewCase("Case")
	b.EventListener("L")
	ci, _ := mustCreate(t, mustBuild(t, b))

	l := mustFind(t, ci, "L")
	expectState(t, l, StateAvailable)
	expectIllegal(t, l.Complete(context.Background()))

	if err := l.Occur(context.Background()); err != nil {
		t.Fatalf("occur L: %v", err)
	}
	expectState(t, ci.Root(), StateCompleted)
}

func TestExitCriterionTerminatesChildrenFirst(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	x := b.Stage("X").Exit("cancelled", model.On("Cancel", model.EventOccur))
	x.Task("A")
	x.Task("B").Manual()
	b.EventListener("Cancel")
	ci, rec := mustCreate(t, mustBuild(t, b))

	stage := mustFind(t, ci, "X")
	a := mustFind(t, ci, "A")
	rec.reset()

	if err := mustFind(t, ci, "Cancel").Occur(ctx); err != nil {
		t.Fatalf("occur Cancel: %v", err)
	}
	expectState(t, stage, StateTerminated)
	expectState(t, a, StateTerminated)
	expectState(t, ci.Root(), StateCompleted)
	expectLog(t, rec,
		"available -occur(Cancel)-> completed",
		"active -parentTerminate(A)-> terminated",
		"enabled -parentTerminate(B)-> terminated",
		"active -exit(X)-> terminated",
		"active -complete(Case)-> completed",
	)
}

func TestSignalFromExternalSource(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case").External("Clerk")
	b.Milestone("Approved").Entry("approval", model.On("Clerk", model.EventComplete))
	ci, rec := mustCreate(t, mustBuild(t, b))
	rec.reset()

	if err := ci.Signal(ctx, "Unknown", model.EventComplete); err == nil {
		t.Fatalf("expected unknown source to be rejected")
	} else if ErrorCode(err) != ErrCodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %q", ErrorCode(err))
	}

	if err := ci.Signal(ctx, "Clerk", "COMPLETE"); err != nil {
		t.Fatalf("signal: %v", err)
	}
	expectLog(t, rec,
		"available -occur(Approved)-> completed",
		"active -complete(Case)-> completed",
	)

	expectIllegal(t, ci.Signal(ctx, "Clerk", model.EventComplete))
}

func TestIfPartReevaluatedOnVariableChange(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	b.Task("Review").EntryIf("ready", "approved && amount > 100")
	ci, _ := mustCreate(t, mustBuild(t, b),
		WithEvaluator(expr.NewCUEEvaluator()),
		WithVariables(map[string]any{"approved": false, "amount": 500}),
	)

	review := mustFind(t, ci, "Review")
	expectState(t, review, StateAvailable)

	if err := ci.SetVariable(ctx, "approved", true); err != nil {
		t.Fatalf("set variable: %v", err)
	}
	expectState(t, review, StateActive)
}

func TestManualActivationRuleExpression(t *testing.T) {
	b := model.NewCase("Case")
	b.Task("A").ManualWhen("needs_review")
	b.Task("B").ManualWhen("!needs_review")
	ci, _ := mustCreate(t, mustBuild(t, b),
		WithEvaluator(expr.NewCUEEvaluator()),
		WithVariables(map[string]any{"needs_review": true}),
	)

	expectState(t, mustFind(t, ci, "A"), StateEnabled)
	expectState(t, mustFind(t, ci, "B"), StateActive)
}

func TestExpressionFailureAbortsCreation(t *testing.T) {
	boom := errors.New("boom")
	b := model.NewCase("Case")
	b.Task("A").EntryIf("broken", "explode")
	failing := expr.EvaluatorFunc(func(context.Context, string, expr.Scope) (bool, error) {
		return false, boom
	})

	_, err := CreateCaseInstance(context.Background(), mustBuild(t, b), WithEvaluator(failing))
	if err == nil {
		t.Fatalf("expected creation to fail")
	}
	if ErrorCode(err) != ErrCodeExpressionFailed {
		t.Fatalf("expected %s, got %q", ErrCodeExpressionFailed, ErrorCode(err))
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected evaluator error in chain")
	}
	var exprErr *ExpressionError
	if !errors.As(err, &exprErr) || exprErr.ActivityID != "A" || exprErr.Expression != "explode" {
		t.Fatalf("expected expression error for A, got %v", err)
	}
}

func TestExpressionFailureLeavesNodeUnchanged(t *testing.T) {
	ctx := context.Background()
	fail := false
	ev := expr.EvaluatorFunc(func(_ context.Context, expression string, _ expr.Scope) (bool, error) {
		if fail {
			return false, errors.New("unavailable")
		}
		return expression == "needsManual", nil
	})
	b := model.NewCase("Case")
	b.Task("A").EntryIf("gate", "open")
	b.Task("S")
	b.Task("B").ManualWhen("needsManual").Entry("afterS", model.On("S", model.EventComplete))
	ci, _ := mustCreate(t, mustBuild(t, b), WithEvaluator(ev))

	fail = true
	err := ci.SetVariable(ctx, "open", true)
	if ErrorCode(err) != ErrCodeExpressionFailed {
		t.Fatalf("expected expression failure, got %v", err)
	}
	expectState(t, mustFind(t, ci, "A"), StateAvailable)

	bx := mustFind(t, ci, "B")
	err = mustFind(t, ci, "S").Complete(ctx)
	if ErrorCode(err) != ErrCodeExpressionFailed {
		t.Fatalf("expected manual activation rule failure, got %v", err)
	}
	expectState(t, bx, StateAvailable)
	if len(bx.satisfied["afterS"]) != 1 {
		t.Fatalf("expected observation to survive the failed activation, got %v", bx.satisfied)
	}

	fail = false
	if err := ci.Evaluate(ctx); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	expectState(t, bx, StateEnabled)
	if len(bx.satisfied) != 0 {
		t.Fatalf("expected observation to be consumed, got %v", bx.satisfied)
	}
}

func TestEnableChecksManualActivationAndEntryCriteria(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	b.Task("B").Manual()
	b.Task("A").Entry("aAfterB", model.On("B", model.EventComplete))
	b.Task("C").Manual().Entry("cAfterB", model.On("B", model.EventComplete))
	ci, rec := mustCreate(t, mustBuild(t, b))
	a := mustFind(t, ci, "A")
	c := mustFind(t, ci, "C")
	rec.reset()

	te := expectIllegal(t, a.Enable(ctx))
	if te.Reason != "manual activation is not required" {
		t.Fatalf("unexpected reason %q", te.Reason)
	}
	te = expectIllegal(t, c.Apply(ctx, TransitionEnable))
	if te.Reason != "entry criteria not satisfied" {
		t.Fatalf("unexpected reason %q", te.Reason)
	}
	expectState(t, a, StateAvailable)
	expectState(t, c, StateAvailable)
	if len(rec.events) != 0 {
		t.Fatalf("expected rejected enables to emit nothing, got %v", rec.lines())
	}

	bt := mustFind(t, ci, "B")
	if err := bt.ManualStart(ctx); err != nil {
		t.Fatalf("start B: %v", err)
	}
	if err := bt.Complete(ctx); err != nil {
		t.Fatalf("complete B: %v", err)
	}
	expectState(t, a, StateActive)
	expectState(t, c, StateEnabled)
	expectIllegal(t, c.Enable(ctx))
}

func TestEnableConsumesSatisfiedSentry(t *testing.T) {
	ctx := context.Background()
	fail := false
	ev := expr.EvaluatorFunc(func(context.Context, string, expr.Scope) (bool, error) {
		if fail {
			return false, errors.New("unavailable")
		}
		return true, nil
	})
	b := model.NewCase("Case")
	b.Task("S")
	b.Task("B").ManualWhen("needsManual").Entry("afterS", model.On("S", model.EventComplete))
	ci, rec := mustCreate(t, mustBuild(t, b), WithEvaluator(ev))
	bx := mustFind(t, ci, "B")

	fail = true
	if err := mustFind(t, ci, "S").Complete(ctx); ErrorCode(err) != ErrCodeExpressionFailed {
		t.Fatalf("expected manual activation rule failure, got %v", err)
	}
	if err := bx.Enable(ctx); ErrorCode(err) != ErrCodeExpressionFailed {
		t.Fatalf("expected enable to surface the rule failure, got %v", err)
	}
	expectState(t, bx, StateAvailable)

	fail = false
	rec.reset()
	if err := bx.Enable(ctx); err != nil {
		t.Fatalf("enable B: %v", err)
	}
	expectLog(t, rec, "available -enable(B)-> enabled")
	if len(bx.satisfied) != 0 {
		t.Fatalf("expected enable to consume the sentry, got %v", bx.satisfied)
	}
}

func TestCompleteRejectsPendingChildren(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	x := b.Stage("X")
	x.Task("A").Manual()
	x.Task("B")
	ci, rec := mustCreate(t, mustBuild(t, b))
	stage := mustFind(t, ci, "X")
	rec.reset()

	te := expectIllegal(t, stage.Complete(ctx))
	if te.Reason == "" {
		t.Fatalf("expected a reason on container rejection")
	}
	expectIllegal(t, stage.ManualComplete(ctx))
	expectState(t, stage, StateActive)
	if len(rec.events) != 0 {
		t.Fatalf("expected rejected completions to emit nothing, got %v", rec.lines())
	}

	if err := mustFind(t, ci, "B").Complete(ctx); err != nil {
		t.Fatalf("complete B: %v", err)
	}
	expectState(t, stage, StateActive)
	expectIllegal(t, stage.Complete(ctx))

	a := mustFind(t, ci, "A")
	if err := stage.ManualComplete(ctx); err != nil {
		t.Fatalf("manual complete X: %v", err)
	}
	expectState(t, stage, StateCompleted)
	expectState(t, ci.Root(), StateCompleted)

	te = expectIllegal(t, a.ManualStart(ctx))
	if te.State != StateEnabled {
		t.Fatalf("expected discarded A to keep its last state, got %s", te.State)
	}
	expectIllegal(t, stage.Complete(ctx))
}

func TestManualCompleteBlockedByRequiredChild(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	x := b.Stage("X")
	x.Task("A").Manual().Required()
	x.Task("B").Manual().RequiredWhen("false")
	ci, _ := mustCreate(t, mustBuild(t, b))
	stage := mustFind(t, ci, "X")

	te := expectIllegal(t, stage.ManualComplete(ctx))
	if te.Reason != "required child A is enabled" {
		t.Fatalf("unexpected reason %q", te.Reason)
	}

	a := mustFind(t, ci, "A")
	if err := a.ManualStart(ctx); err != nil {
		t.Fatalf("manual start A: %v", err)
	}
	if err := a.Complete(ctx); err != nil {
		t.Fatalf("complete A: %v", err)
	}
	if err := stage.ManualComplete(ctx); err != nil {
		t.Fatalf("manual complete X: %v", err)
	}
	expectState(t, ci.Root(), StateCompleted)
}

func TestTerminalNodesRejectCompletion(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	b.Task("A")
	b.Task("B").Manual()
	b.Task("C")
	ci, _ := mustCreate(t, mustBuild(t, b))

	a := mustFind(t, ci, "A")
	bt := mustFind(t, ci, "B")
	c := mustFind(t, ci, "C")
	if err := a.Complete(ctx); err != nil {
		t.Fatalf("complete A: %v", err)
	}
	if err := bt.Disable(ctx); err != nil {
		t.Fatalf("disable B: %v", err)
	}
	if err := c.Terminate(ctx); err != nil {
		t.Fatalf("terminate C: %v", err)
	}

	for _, ex := range []*CaseExecution{a, bt, c} {
		before := ex.State()
		expectIllegal(t, ex.Complete(ctx))
		expectIllegal(t, ex.ManualComplete(ctx))
		expectState(t, ex, before)
	}
	if slices.Contains(ci.Root().Children(), c) {
		t.Fatalf("expected terminated C to be detached")
	}
}

func TestTerminateCascadesAndCloseArchives(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	x := b.Stage("X")
	x.Task("A")
	b.Task("B").Manual()
	ci, rec := mustCreate(t, mustBuild(t, b))
	root := ci.Root()

	expectIllegal(t, root.Close(ctx))
	expectIllegal(t, mustFind(t, ci, "A").Close(ctx))

	rec.reset()
	if err := root.Terminate(ctx); err != nil {
		t.Fatalf("terminate case: %v", err)
	}
	expectLog(t, rec,
		"active -parentTerminate(A)-> terminated",
		"active -parentTerminate(X)-> terminated",
		"enabled -parentTerminate(B)-> terminated",
		"active -terminate(Case)-> terminated",
	)
	if len(root.Children()) != 0 {
		t.Fatalf("expected no live children")
	}

	if err := root.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	expectState(t, root, StateClosed)
	expectIllegal(t, root.Close(ctx))
}

func TestSuspendCascadesAndResumeRestores(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	x := b.Stage("X")
	x.Task("A")
	x.Task("B").Manual()
	ci, rec := mustCreate(t, mustBuild(t, b))

	stage := mustFind(t, ci, "X")
	a := mustFind(t, ci, "A")
	bt := mustFind(t, ci, "B")
	rec.reset()

	if err := stage.Suspend(ctx); err != nil {
		t.Fatalf("suspend X: %v", err)
	}
	expectState(t, a, StateSuspended)
	expectState(t, bt, StateSuspended)
	if a.PriorState() != StateActive || bt.PriorState() != StateEnabled {
		t.Fatalf("expected prior states to be saved, got %s/%s", a.PriorState(), bt.PriorState())
	}

	te := expectIllegal(t, a.Resume(ctx))
	if te.Reason != "parent is suspended" {
		t.Fatalf("unexpected reason %q", te.Reason)
	}
	expectIllegal(t, a.Complete(ctx))

	if err := stage.Resume(ctx); err != nil {
		t.Fatalf("resume X: %v", err)
	}
	expectState(t, stage, StateActive)
	expectState(t, a, StateActive)
	expectState(t, bt, StateEnabled)
	if a.PriorState() != StateNew {
		t.Fatalf("expected prior state to be cleared")
	}
	expectLog(t, rec,
		"active -suspend(X)-> suspended",
		"active -parentSuspend(A)-> suspended",
		"enabled -parentSuspend(B)-> suspended",
		"suspended -resume(X)-> active",
		"suspended -parentResume(A)-> active",
		"suspended -parentResume(B)-> enabled",
	)
}

func TestDirectSuspendSurvivesParentResume(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	x := b.Stage("X")
	x.Task("A").Manual()
	x.Task("B")
	ci, _ := mustCreate(t, mustBuild(t, b))

	stage := mustFind(t, ci, "X")
	a := mustFind(t, ci, "A")
	if err := a.Suspend(ctx); err != nil {
		t.Fatalf("suspend A: %v", err)
	}
	if err := stage.Suspend(ctx); err != nil {
		t.Fatalf("suspend X: %v", err)
	}
	if err := stage.Resume(ctx); err != nil {
		t.Fatalf("resume X: %v", err)
	}
	expectState(t, a, StateSuspended)
	expectState(t, mustFind(t, ci, "B"), StateActive)

	if err := a.Resume(ctx); err != nil {
		t.Fatalf("resume A: %v", err)
	}
	expectState(t, a, StateEnabled)
}

func TestSuspendedAvailableNodeKeepsEntryObservations(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	b.Task("A")
	b.Task("B").Entry("afterA", model.On("A", model.EventComplete))
	ci, rec := mustCreate(t, mustBuild(t, b))
	bt := mustFind(t, ci, "B")

	if err := bt.Suspend(ctx); err != nil {
		t.Fatalf("suspend B: %v", err)
	}
	if err := mustFind(t, ci, "A").Complete(ctx); err != nil {
		t.Fatalf("complete A: %v", err)
	}
	expectState(t, bt, StateSuspended)

	rec.reset()
	if err := bt.Resume(ctx); err != nil {
		t.Fatalf("resume B: %v", err)
	}
	expectLog(t, rec,
		"suspended -resume(B)-> available",
		"available -start(B)-> active",
	)
	if err := bt.Complete(ctx); err != nil {
		t.Fatalf("complete B: %v", err)
	}
	expectState(t, ci.Root(), StateCompleted)
}

func TestParentResumeEvaluatesChildEntry(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case").External("Clerk")
	x := b.Stage("X")
	x.Task("A")
	x.Task("B").Entry("byClerk", model.On("Clerk", model.EventOccur))
	ci, rec := mustCreate(t, mustBuild(t, b))
	stage := mustFind(t, ci, "X")

	if err := stage.Suspend(ctx); err != nil {
		t.Fatalf("suspend X: %v", err)
	}
	if err := ci.Signal(ctx, "Clerk", model.EventOccur); err != nil {
		t.Fatalf("signal: %v", err)
	}
	expectState(t, mustFind(t, ci, "B"), StateSuspended)

	rec.reset()
	if err := stage.Resume(ctx); err != nil {
		t.Fatalf("resume X: %v", err)
	}
	expectLog(t, rec,
		"suspended -resume(X)-> active",
		"suspended -parentResume(A)-> active",
		"suspended -parentResume(B)-> available",
		"available -start(B)-> active",
	)
}

func TestSuspendedChildBlocksAutoCompletion(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	b.Task("A")
	b.Task("B")
	ci, _ := mustCreate(t, mustBuild(t, b))

	a := mustFind(t, ci, "A")
	if err := a.Suspend(ctx); err != nil {
		t.Fatalf("suspend A: %v", err)
	}
	if err := mustFind(t, ci, "B").Complete(ctx); err != nil {
		t.Fatalf("complete B: %v", err)
	}
	expectState(t, ci.Root(), StateActive)

	if err := a.Resume(ctx); err != nil {
		t.Fatalf("resume A: %v", err)
	}
	if err := a.Complete(ctx); err != nil {
		t.Fatalf("complete A: %v", err)
	}
	expectState(t, ci.Root(), StateCompleted)
}

func TestListenersCannotVeto(t *testing.T) {
	b := model.NewCase("Case")
	b.Task("A")
	failing := ListenerFunc(func(context.Context, TransitionEvent) error {
		return errors.New("listener down")
	})
	panicking := ListenerFunc(func(context.Context, TransitionEvent) error {
		panic("listener exploded")
	})
	ci, rec := mustCreate(t, mustBuild(t, b), WithListeners(failing, panicking))

	if err := mustFind(t, ci, "A").Complete(context.Background()); err != nil {
		t.Fatalf("complete A: %v", err)
	}
	expectState(t, ci.Root(), StateCompleted)
	if len(rec.events) != 5 {
		t.Fatalf("expected recorder to keep receiving events, got %d", len(rec.events))
	}
	for i, evt := range rec.events {
		if evt.Sequence != int64(i+1) {
			t.Fatalf("expected sequence %d, got %d", i+1, evt.Sequence)
		}
		if evt.CaseInstanceID != ci.ID() {
			t.Fatalf("expected case instance id on every event")
		}
	}
}

func TestAllowedTransitionsAndSnapshot(t *testing.T) {
	b := model.NewCase("Case")
	x := b.Stage("X")
	x.Task("A").Manual()
	b.Milestone("M").Entry("never", model.On("X", model.EventExit))
	ci, _ := mustCreate(t, mustBuild(t, b))

	a := mustFind(t, ci, "A")
	allowed := a.AllowedTransitions()
	for _, want := range []Transition{TransitionManualStart, TransitionDisable, TransitionTerminate, TransitionSuspend} {
		if !slices.Contains(allowed, want) {
			t.Fatalf("expected %s in %v", want, allowed)
		}
	}
	if slices.Contains(allowed, TransitionComplete) || slices.Contains(allowed, TransitionOccur) {
		t.Fatalf("unexpected transitions in %v", allowed)
	}

	m := mustFind(t, ci, "M")
	if slices.Contains(m.AllowedTransitions(), TransitionStart) {
		t.Fatalf("milestones never start")
	}

	snap := ci.Snapshot()
	if snap.ActivityID != "Case" || snap.State != StateActive || len(snap.Children) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Children[0].Children[0].ActivityID != "A" || snap.Children[0].Children[0].State != StateEnabled {
		t.Fatalf("unexpected nested snapshot %+v", snap.Children[0])
	}
}

func TestTransitionRulesTargetPriorStateOnResume(t *testing.T) {
	rules := TransitionRules()
	resumes := 0
	for _, rule := range rules {
		switch rule.Transition {
		case TransitionResume, TransitionParentResume:
			resumes++
			if rule.To != StatePrior || rule.To.String() != "(prior state)" {
				t.Fatalf("expected %s to target the prior state, got %s", rule.Transition, rule.To)
			}
		default:
			if rule.To == StatePrior {
				t.Fatalf("unexpected prior target on %s", rule.Transition)
			}
		}
	}
	if resumes != 2 {
		t.Fatalf("expected two resume rows, got %d", resumes)
	}

	rules[0].To = StateClosed
	if TransitionRules()[0].To == StateClosed {
		t.Fatalf("expected a copy of the lifecycle table")
	}
}

func TestFindCaseExecutionByRuntimeID(t *testing.T) {
	b := model.NewCase("Case")
	b.Task("A")
	ci, _ := mustCreate(t, mustBuild(t, b))

	if ci.ID() != "ex-1" || ci.Root().ID() != ci.ID() {
		t.Fatalf("expected root id to double as case instance id, got %s", ci.ID())
	}
	a := mustFind(t, ci, "A")
	if got := ci.FindCaseExecution(a.ID()); got != a {
		t.Fatalf("expected lookup by runtime id")
	}
	if got := a.FindCaseExecution("Case"); got != ci.Root() {
		t.Fatalf("expected lookup of the root by activity id")
	}
	if ci.FindCaseExecution("missing") != nil {
		t.Fatalf("expected nil for unknown id")
	}
}

func TestCreateRejectsNilDefinition(t *testing.T) {
	_, err := CreateCaseInstance(context.Background(), nil)
	if ErrorCode(err) != ErrCodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestApplyByName(t *testing.T) {
	ctx := context.Background()
	b := model.NewCase("Case")
	b.Task("A").Manual()
	ci, _ := mustCreate(t, mustBuild(t, b))
	a := mustFind(t, ci, "A")

	tr, ok := ParseTransition("MANUALSTART")
	if !ok || tr != TransitionManualStart {
		t.Fatalf("expected manualStart, got %q", tr)
	}
	if _, ok := ParseTransition("parentTerminate"); ok {
		t.Fatalf("expected internal transitions to be rejected by the parser")
	}
	if err := a.Apply(ctx, tr); err != nil {
		t.Fatalf("apply manualStart: %v", err)
	}
	if err := a.Apply(ctx, TransitionExit); ErrorCode(err) != ErrCodeInvalidArgument {
		t.Fatalf("expected invalid argument for exit, got %v", err)
	}
	expectState(t, a, StateActive)
	if err := a.Apply(ctx, TransitionComplete); err != nil {
		t.Fatalf("apply complete: %v", err)
	}
	expectState(t, ci.Root(), StateCompleted)
}
