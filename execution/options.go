package execution

import (
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-cmmn/expr"
)

type config struct {
	evaluator   expr.Evaluator
	logger      Logger
	listeners   Listeners
	idGenerator func() string
	variables   map[string]any
	now         func() time.Time
}

// Option customizes a case instance.
type Option func(*config)

// WithEvaluator sets the expression evaluator used for ifParts and rules.
func WithEvaluator(evaluator expr.Evaluator) Option {
	return func(c *config) {
		if evaluator != nil {
			c.evaluator = evaluator
		}
	}
}

// WithLogger sets the runtime logger. Defaults to a nop logger.
func WithLogger(logger Logger) Option {
	return func(c *config) {
		c.logger = normalizeLogger(logger)
	}
}

// WithListeners appends transition listeners.
func WithListeners(listeners ...Listener) Option {
	return func(c *config) {
		c.listeners = append(c.listeners, listeners...)
	}
}

// WithIDGenerator overrides runtime id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.idGenerator = fn
		}
	}
}

// WithVariables seeds the case instance scope.
func WithVariables(vars map[string]any) Option {
	return func(c *config) {
		if c.variables == nil {
			c.variables = make(map[string]any, len(vars))
		}
		for k, v := range vars {
			c.variables[k] = v
		}
	}
}

// WithClock overrides the clock stamped on transition events.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

func newConfig(opts ...Option) config {
	cfg := config{
		evaluator:   expr.Literal,
		logger:      NewNopLogger(),
		idGenerator: uuid.NewString,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
