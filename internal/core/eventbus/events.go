package eventbus

import (
	"errors"

	"github.com/colonyops/holdpoint/internal/core/review"
)

// SessionCreatedPayload is emitted when a review session is registered.
type SessionCreatedPayload struct {
	Session review.Summary
}

// SessionCompletedPayload is emitted when a session resolves with a decision.
type SessionCompletedPayload struct {
	SessionID string
	Result    review.Result
}

// SessionCancelledPayload is emitted when a session resolves via cancel or
// timeout.
type SessionCancelledPayload struct {
	SessionID string
	Reason    string
}

// CommentAddedPayload is emitted when a comment is attached to a session.
type CommentAddedPayload struct {
	SessionID string
	Comment   review.Comment
}

// CommentDeletedPayload is emitted when a comment is removed from a session.
type CommentDeletedPayload struct {
	SessionID string
	CommentID string
}

// ServiceEvents adapts the bus to the review service's event sink.
type ServiceEvents struct {
	bus *EventBus
}

var _ review.Events = (*ServiceEvents)(nil)

// NewServiceEvents wraps the bus for use as a review.Events sink.
func NewServiceEvents(bus *EventBus) *ServiceEvents {
	return &ServiceEvents{bus: bus}
}

// SessionCreated forwards session creation to the bus.
func (e *ServiceEvents) SessionCreated(s review.Summary) {
	e.bus.PublishSessionCreated(SessionCreatedPayload{Session: s})
}

// SessionResolved forwards the terminal outcome to the bus, splitting the
// single resolution callback into completed/cancelled events.
func (e *ServiceEvents) SessionResolved(id string, res review.Result, err error) {
	if err != nil {
		reason := err.Error()
		if errors.Is(err, review.ErrReviewTimedOut) {
			reason = "Review timed out"
		}
		e.bus.PublishSessionCancelled(SessionCancelledPayload{SessionID: id, Reason: reason})
		return
	}
	e.bus.PublishSessionCompleted(SessionCompletedPayload{SessionID: id, Result: res})
}

// CommentAdded forwards comment creation to the bus.
func (e *ServiceEvents) CommentAdded(sessionID string, c review.Comment) {
	e.bus.PublishCommentAdded(CommentAddedPayload{SessionID: sessionID, Comment: c})
}

// CommentDeleted forwards comment removal to the bus.
func (e *ServiceEvents) CommentDeleted(sessionID, commentID string) {
	e.bus.PublishCommentDeleted(CommentDeletedPayload{SessionID: sessionID, CommentID: commentID})
}
