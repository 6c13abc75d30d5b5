// Package metrics exports case execution activity to Prometheus.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-cmmn/execution"
)

// Listener counts committed transitions. It implements execution.Listener.
type Listener struct {
	transitions *prometheus.CounterVec
	completed   *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

// NewListener creates the collectors and registers them with reg. A nil
// registerer skips registration.
func NewListener(reg prometheus.Registerer) (*Listener, error) {
	l := &Listener{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cmmn",
				Name:      "case_transitions_total",
				Help:      "Committed case execution transitions.",
			},
			[]string{"kind", "transition", "to"},
		),
		completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cmmn",
				Name:      "case_instances_finished_total",
				Help:      "Case instances that reached a terminal state.",
			},
			[]string{"definition", "state"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cmmn",
				Name:      "case_transition_rejections_total",
				Help:      "Transition requests refused by the lifecycle rules.",
			},
			[]string{"transition", "state"},
		),
	}
	if reg == nil {
		return l, nil
	}
	for _, c := range []prometheus.Collector{l.transitions, l.completed, l.rejections} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// MustNewListener panics when registration fails.
func MustNewListener(reg prometheus.Registerer) *Listener {
	l, err := NewListener(reg)
	if err != nil {
		panic(err)
	}
	return l
}

// Notify implements execution.Listener.
func (l *Listener) Notify(_ context.Context, evt execution.TransitionEvent) error {
	if l == nil {
		return errors.New("metrics listener not configured")
	}
	l.transitions.WithLabelValues(string(evt.Kind), string(evt.Transition), string(evt.To)).Inc()
	if evt.ParentID == "" && (evt.To == execution.StateCompleted || evt.To == execution.StateTerminated) {
		l.completed.WithLabelValues(evt.CaseDefinition, string(evt.To)).Inc()
	}
	return nil
}

// ObserveError counts err when it rejects a transition and returns it
// unchanged, so calls can be wrapped inline.
func (l *Listener) ObserveError(err error) error {
	if l == nil || err == nil {
		return err
	}
	if te, ok := execution.AsTransitionError(err); ok {
		l.rejections.WithLabelValues(string(te.Transition), string(te.State)).Inc()
	}
	return err
}
