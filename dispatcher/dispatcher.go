// Package dispatcher routes engine messages by type to subscribed command
// and query handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-cmmn"
	"github.com/goliatone/go-cmmn/execution"
)

const (
	ErrCodeNoHandler      = "DISPATCH_NO_HANDLER"
	ErrCodeAmbiguousQuery = "DISPATCH_AMBIGUOUS_QUERY"
	ErrCodeHandlerFailed  = "DISPATCH_HANDLER_FAILED"
	ErrCodeContext        = "DISPATCH_CONTEXT_DONE"
)

var (
	ErrNoHandler = apperrors.New("no handler subscribed", apperrors.CategoryNotFound).
			WithTextCode(ErrCodeNoHandler)
	ErrAmbiguousQuery = apperrors.New("multiple query handlers subscribed", apperrors.CategoryConflict).
				WithTextCode(ErrCodeAmbiguousQuery)
	ErrHandlerFailed = apperrors.New("handler failed", apperrors.CategoryHandler).
				WithTextCode(ErrCodeHandlerFailed)
	ErrContextDone = apperrors.New("context canceled or deadline exceeded", apperrors.CategoryInternal).
			WithTextCode(ErrCodeContext)
)

// Dispatcher keeps handlers per message type.
type Dispatcher struct {
	mu        sync.RWMutex
	handlers  map[string][]any
	exitOnErr bool
	timeout   time.Duration
	logger    execution.Logger
}

// Option defines the functional option signature.
type Option func(*Dispatcher)

// WithExitOnError stops a dispatch at the first failing command handler.
func WithExitOnError() Option {
	return func(d *Dispatcher) {
		d.exitOnErr = true
	}
}

// WithTimeout bounds every handler call.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = t
	}
}

func WithLogger(logger execution.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher applies the given options to a new dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string][]any),
		logger:   execution.NewNopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Subscription detaches a handler from its dispatcher. Unsubscribe may be
// called more than once.
type Subscription interface {
	Unsubscribe()
}

type subscription func()

func (s subscription) Unsubscribe() { s() }

func (d *Dispatcher) register(msgType string, handler any) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[msgType] = append(d.handlers[msgType], handler)
	return subscription(func() { d.remove(msgType, handler) })
}

// remove drops handler and forgets msgType once nothing is subscribed.
func (d *Dispatcher) remove(msgType string, handler any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := slices.DeleteFunc(slices.Clone(d.handlers[msgType]), func(h any) bool {
		return h == handler
	})
	if len(kept) == 0 {
		delete(d.handlers, msgType)
		return
	}
	d.handlers[msgType] = kept
}

// Handlers returns the number of handlers subscribed for msgType.
func (d *Dispatcher) Handlers(msgType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[msgType])
}

func (d *Dispatcher) snapshot(msgType string) []any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]any, len(d.handlers[msgType]))
	copy(out, d.handlers[msgType])
	return out
}

func (d *Dispatcher) contextWithSettings(parent context.Context) (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(parent, d.timeout)
	}
	return parent, func() {}
}

type commandWrapper[T cmmn.Message] struct {
	cmd cmmn.Commander[T]
}

type queryWrapper[T cmmn.Message, R any] struct {
	qry cmmn.Querier[T, R]
}

// SubscribeCommand registers cmd for messages of type T.
func SubscribeCommand[T cmmn.Message](d *Dispatcher, cmd cmmn.Commander[T]) Subscription {
	var msg T
	return d.register(msg.Type(), &commandWrapper[T]{cmd: cmd})
}

func SubscribeCommandFunc[T cmmn.Message](d *Dispatcher, fn cmmn.CommandFunc[T]) Subscription {
	return SubscribeCommand[T](d, fn)
}

// SubscribeQuery registers qry for messages of type T. Only one query
// handler may be subscribed per type at dispatch time.
func SubscribeQuery[T cmmn.Message, R any](d *Dispatcher, qry cmmn.Querier[T, R]) Subscription {
	var msg T
	return d.register(msg.Type(), &queryWrapper[T, R]{qry: qry})
}

func SubscribeQueryFunc[T cmmn.Message, R any](d *Dispatcher, fn cmmn.QueryFunc[T, R]) Subscription {
	return SubscribeQuery[T, R](d, fn)
}

func dispatchError(base *apperrors.Error, msgType string, format string, args ...any) *apperrors.Error {
	err := base.Clone()
	err.Message = fmt.Sprintf(format, args...)
	return err.WithMetadata(map[string]any{"message_type": msgType})
}

func commandHandlers[T cmmn.Message](d *Dispatcher, msgType string) ([]*commandWrapper[T], error) {
	handlers := d.snapshot(msgType)
	if len(handlers) == 0 {
		return nil, dispatchError(ErrNoHandler, msgType, "no command handlers for message type %s", msgType)
	}
	typed := make([]*commandWrapper[T], 0, len(handlers))
	for _, h := range handlers {
		cw, ok := h.(*commandWrapper[T])
		if !ok {
			return nil, dispatchError(ErrNoHandler, msgType, "handler for %s is not a command handler", msgType)
		}
		typed = append(typed, cw)
	}
	return typed, nil
}

// Dispatch runs every command handler subscribed for T in subscription
// order. Errors are joined unless the dispatcher exits on error.
func Dispatch[T cmmn.Message](ctx context.Context, d *Dispatcher, msg T) error {
	if err := cmmn.ValidateMessage(msg); err != nil {
		return err
	}
	msgType := cmmn.GetMessageType(msg)
	wrappers, err := commandHandlers[T](d, msgType)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return dispatchError(ErrContextDone, msgType, "dispatch of %s aborted", msgType).WithMetadata(map[string]any{"cause": ctx.Err().Error()})
	}

	var errs error
	for _, cw := range wrappers {
		cctx, cancel := d.contextWithSettings(ctx)
		err := cw.cmd.Execute(cctx, msg)
		cancel()
		if err == nil {
			continue
		}
		d.logger.Warn("handler failed for message type %s: %v", msgType, err)
		wrapped := dispatchError(ErrHandlerFailed, msgType, "handler failed for type %s", msgType)
		wrapped.Source = err
		if d.exitOnErr {
			return wrapped
		}
		errs = errors.Join(errs, wrapped)
	}
	return errs
}

// Query runs the single query handler subscribed for T.
func Query[T cmmn.Message, R any](ctx context.Context, d *Dispatcher, msg T) (R, error) {
	var zero R
	if err := cmmn.ValidateMessage(msg); err != nil {
		return zero, err
	}
	msgType := cmmn.GetMessageType(msg)
	handlers := d.snapshot(msgType)
	switch {
	case len(handlers) == 0:
		return zero, dispatchError(ErrNoHandler, msgType, "no query handlers for message type %s", msgType)
	case len(handlers) > 1:
		return zero, dispatchError(ErrAmbiguousQuery, msgType, "%d query handlers for message type %s", len(handlers), msgType)
	}
	qw, ok := handlers[0].(*queryWrapper[T, R])
	if !ok {
		return zero, dispatchError(ErrNoHandler, msgType, "handler for %s is not a query handler", msgType)
	}
	if ctx.Err() != nil {
		return zero, dispatchError(ErrContextDone, msgType, "query %s aborted", msgType).WithMetadata(map[string]any{"cause": ctx.Err().Error()})
	}

	cctx, cancel := d.contextWithSettings(ctx)
	defer cancel()
	result, err := qw.qry.Query(cctx, msg)
	if err != nil {
		wrapped := dispatchError(ErrHandlerFailed, msgType, "query handler failed for type %s", msgType)
		wrapped.Source = err
		return zero, wrapped
	}
	return result, nil
}

// Bind subscribes engine for every engine message type.
func Bind(d *Dispatcher, engine *cmmn.Engine) []Subscription {
	return []Subscription{
		SubscribeCommand[cmmn.TransitionRequest](d, engine),
		SubscribeCommandFunc(d, cmmn.CommandFunc[cmmn.SignalRequest](engine.Signal)),
		SubscribeCommandFunc(d, cmmn.CommandFunc[cmmn.VariableRequest](engine.SetVariable)),
		SubscribeQuery[cmmn.SnapshotQuery, execution.Snapshot](d, engine),
	}
}
