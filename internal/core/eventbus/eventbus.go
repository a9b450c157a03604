// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within holdpoint. Publishing is
// non-blocking: events are enqueued on a buffered channel and dispatched by
// a single goroutine, and an event is dropped (with a debug log) when the
// buffer is full rather than stalling the publisher.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Event identifies an event type on the bus.
type Event string

// Bus events. Keep list sorted A-Z.
const (
	EventCommentAdded     Event = "comment.added"
	EventCommentDeleted   Event = "comment.deleted"
	EventSessionCancelled Event = "session.cancelled"
	EventSessionCompleted Event = "session.completed"
	EventSessionCreated   Event = "session.created"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus dispatches typed events to subscribers. Subscribers run on the
// dispatch goroutine and must not block.
type EventBus struct {
	ch  chan envelope
	log zerolog.Logger

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates a bus with the given buffer size.
func New(buffer int, logger zerolog.Logger) *EventBus {
	return &EventBus{
		ch:   make(chan envelope, buffer),
		log:  logger,
		subs: make(map[Event][]func(any)),
	}
}

// Start runs the dispatch loop until ctx is cancelled.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	handlers := make([]func(any), len(bus.subs[env.event]))
	copy(handlers, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range handlers {
		fn(env.payload)
	}
}

func (bus *EventBus) send(event Event, payload any) {
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
	default:
		bus.log.Debug().Str("event", string(event)).Msg("event dropped, bus buffer full")
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
}

// PublishSessionCreated publishes a session.created event.
func (bus *EventBus) PublishSessionCreated(p SessionCreatedPayload) {
	bus.send(EventSessionCreated, p)
}

// SubscribeSessionCreated registers a handler for session.created events.
func (bus *EventBus) SubscribeSessionCreated(fn func(SessionCreatedPayload)) {
	bus.subscribe(EventSessionCreated, func(v any) {
		if p, ok := v.(SessionCreatedPayload); ok {
			fn(p)
		}
	})
}

// PublishSessionCompleted publishes a session.completed event.
func (bus *EventBus) PublishSessionCompleted(p SessionCompletedPayload) {
	bus.send(EventSessionCompleted, p)
}

// SubscribeSessionCompleted registers a handler for session.completed events.
func (bus *EventBus) SubscribeSessionCompleted(fn func(SessionCompletedPayload)) {
	bus.subscribe(EventSessionCompleted, func(v any) {
		if p, ok := v.(SessionCompletedPayload); ok {
			fn(p)
		}
	})
}

// PublishSessionCancelled publishes a session.cancelled event.
func (bus *EventBus) PublishSessionCancelled(p SessionCancelledPayload) {
	bus.send(EventSessionCancelled, p)
}

// SubscribeSessionCancelled registers a handler for session.cancelled events.
func (bus *EventBus) SubscribeSessionCancelled(fn func(SessionCancelledPayload)) {
	bus.subscribe(EventSessionCancelled, func(v any) {
		if p, ok := v.(SessionCancelledPayload); ok {
			fn(p)
		}
	})
}

// PublishCommentAdded publishes a comment.added event.
func (bus *EventBus) PublishCommentAdded(p CommentAddedPayload) {
	bus.send(EventCommentAdded, p)
}

// SubscribeCommentAdded registers a handler for comment.added events.
func (bus *EventBus) SubscribeCommentAdded(fn func(CommentAddedPayload)) {
	bus.subscribe(EventCommentAdded, func(v any) {
		if p, ok := v.(CommentAddedPayload); ok {
			fn(p)
		}
	})
}

// PublishCommentDeleted publishes a comment.deleted event.
func (bus *EventBus) PublishCommentDeleted(p CommentDeletedPayload) {
	bus.send(EventCommentDeleted, p)
}

// SubscribeCommentDeleted registers a handler for comment.deleted events.
func (bus *EventBus) SubscribeCommentDeleted(fn func(CommentDeletedPayload)) {
	bus.subscribe(EventCommentDeleted, func(v any) {
		if p, ok := v.(CommentDeletedPayload); ok {
			fn(p)
		}
	})
}
