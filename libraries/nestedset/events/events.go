// Package events implements a typed haltable/notify pub/sub keyed by
// record-class name.
package events

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Name identifies one of the lifecycle/move signals:
// "<action>: <record-class>" where action is one of moving, moved,
// creating, saving, saved, deleting, restoring, restored.
type Name string

func For(action, recordClass string) Name {
	return Name(fmt.Sprintf("%s: %s", action, recordClass))
}

// Payload carries the node under mutation and, for move events, the
// resolved target and requested position.
type Payload struct {
	Node     any
	Target   any
	Position any
}

// Handler is a subscriber callback. Returning false from a haltable
// dispatch vetoes the operation; returning an error aborts it.
type Handler func(ctx context.Context, payload Payload) (bool, error)

// Bus is the minimal typed pub/sub the core requires: Until is
// haltable, Dispatch is fire-and-forget.
type Bus interface {
	Subscribe(name Name, h Handler)
	Until(ctx context.Context, name Name, payload Payload) (bool, error)
	Dispatch(ctx context.Context, name Name, payload Payload)
}

// InMemoryBus is a process-local Bus backed by a handler map, set once
// at construction and read by the Move Engine and lifecycle hooks.
type InMemoryBus struct {
	handlers map[Name][]Handler
	log      *logrus.Entry
}

// NewInMemoryBus returns an empty bus. logger may be nil, in which
// case a fresh logrus.Logger is used.
func NewInMemoryBus(logger *logrus.Logger) *InMemoryBus {
	if logger == nil {
		logger = logrus.New()
	}
	return &InMemoryBus{
		handlers: make(map[Name][]Handler),
		log:      logger.WithField("component", "events"),
	}
}

func (b *InMemoryBus) Subscribe(name Name, h Handler) {
	b.handlers[name] = append(b.handlers[name], h)
}

// Until dispatches to every subscriber in registration order, halting
// (and returning false) at the first subscriber that vetoes, and
// aborting (returning the error) at the first subscriber that errors.
// No side effects happen on veto: it is a clean no-op.
func (b *InMemoryBus) Until(ctx context.Context, name Name, payload Payload) (bool, error) {
	for _, h := range b.handlers[name] {
		ok, err := h(ctx, payload)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Dispatch notifies every subscriber, logging (not returning) any
// handler error, since "moved" and the other lifecycle events are
// fire-and-forget.
func (b *InMemoryBus) Dispatch(ctx context.Context, name Name, payload Payload) {
	for _, h := range b.handlers[name] {
		if _, err := h(ctx, payload); err != nil {
			b.log.WithError(err).WithField("event", string(name)).Warn("event handler failed")
		}
	}
}
