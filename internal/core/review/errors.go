package review

import "errors"

// Sentinel errors for review operations. Callers match with errors.Is.
var (
	// ErrSessionNotFound is returned when a session id has no registry entry.
	ErrSessionNotFound = errors.New("review session not found")

	// ErrNoFiles is returned when session creation is attempted with an
	// empty file list.
	ErrNoFiles = errors.New("no files to review")

	// ErrAlreadyFinalized is returned for mutations against a session whose
	// status is no longer pending.
	ErrAlreadyFinalized = errors.New("review session already finalized")

	// ErrCommentNotFound is returned when deleting a comment id that does
	// not exist on the session.
	ErrCommentNotFound = errors.New("review comment not found")

	// ErrInvalidRequest is returned for malformed input: empty comment text,
	// inverted line ranges, unknown sides or statuses.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrReviewCancelled is the outcome delivered to waiters when the
	// session resolves via an explicit cancel.
	ErrReviewCancelled = errors.New("review cancelled")

	// ErrReviewTimedOut is the outcome delivered to waiters when the
	// session's auto-cancel timer fires first.
	ErrReviewTimedOut = errors.New("review timed out")
)
