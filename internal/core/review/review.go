// Package review implements the review session lifecycle: the session
// entity, the registry of live sessions, the one-shot completion signal that
// suspends callers until a human decision arrives, and the orchestration
// service tying them together.
package review

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a review session.
type Status string

// Session statuses. A session starts pending and transitions exactly once to
// one of the three terminal values.
const (
	StatusPending          Status = "pending"
	StatusApproved         Status = "approved"
	StatusChangesRequested Status = "changes_requested"
	StatusCancelled        Status = "cancelled"
)

// Terminal reports whether the status is an absorbing state.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusChangesRequested || s == StatusCancelled
}

// Side identifies which diff column a comment range belongs to.
type Side string

// Comment sides: "old" anchors to deleted lines, "new" to added/context lines.
const (
	SideOld Side = "old"
	SideNew Side = "new"
)

// File is one reviewed artifact in a session's immutable snapshot.
type File struct {
	Path       string `json:"path"`
	NewContent string `json:"new_content"`
	OldContent string `json:"old_content,omitempty"`
	Language   string `json:"language,omitempty"`
}

// Comment is an inline annotation on a session file.
type Comment struct {
	ID        string    `json:"id"`
	FilePath  string    `json:"file_path"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Side      Side      `json:"side"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Options configure session construction.
type Options struct {
	Title       string
	Description string
	// Timeout arms an auto-cancel timer. Zero means no timer.
	Timeout time.Duration
}

// Session is the aggregate root for one review request. Files, title and
// description are immutable after construction; status, comments and
// feedback are guarded by the session mutex so the terminal transition and
// the signal fire happen as a single atomic step.
type Session struct {
	id          string
	title       string
	description string
	files       []File
	createdAt   time.Time
	signal      *Signal

	mu       sync.Mutex
	status   Status
	comments []Comment
	feedback string
	timer    *time.Timer
}

// NewSession constructs a pending session with a fresh completion signal.
// If opts.Timeout is positive, a timer is armed that cancels the session
// with a timeout outcome unless a terminal transition disarms it first.
func NewSession(files []File, opts Options) *Session {
	s := &Session{
		id:          uuid.NewString(),
		title:       opts.Title,
		description: opts.Description,
		files:       files,
		createdAt:   time.Now(),
		signal:      NewSignal(),
		status:      StatusPending,
	}

	if opts.Timeout > 0 {
		s.timer = time.AfterFunc(opts.Timeout, func() {
			s.cancelWith(fmt.Errorf("%w after inactivity", ErrReviewTimedOut))
		})
	}

	return s
}

// ID returns the session's opaque unique identifier.
func (s *Session) ID() string { return s.id }

// Title returns the optional session title.
func (s *Session) Title() string { return s.title }

// Description returns the optional session description.
func (s *Session) Description() string { return s.description }

// Files returns the immutable reviewed file snapshot.
func (s *Session) Files() []File { return s.files }

// CreatedAt returns the construction timestamp.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Signal returns the session's completion signal.
func (s *Session) Signal() *Signal { return s.signal }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Feedback returns the general free-text feedback.
func (s *Session) Feedback() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedback
}

// Comments returns a copy of the current comment collection.
func (s *Session) Comments() []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyComments()
}

// AddComment appends a comment with a generated id and timestamp. A
// comment-add that loses the race against a terminal transition observes the
// terminal status and fails with ErrAlreadyFinalized.
func (s *Session) AddComment(c Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPending {
		return Comment{}, fmt.Errorf("add comment: %w", ErrAlreadyFinalized)
	}

	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	s.comments = append(s.comments, c)
	return c, nil
}

// DeleteComment removes a comment by id while the session is pending.
func (s *Session) DeleteComment(commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPending {
		return fmt.Errorf("delete comment: %w", ErrAlreadyFinalized)
	}

	for i, c := range s.comments {
		if c.ID == commentID {
			s.comments = append(s.comments[:i], s.comments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete comment %q: %w", commentID, ErrCommentNotFound)
}

// SetFeedback replaces the general feedback text while the session is pending.
func (s *Session) SetFeedback(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPending {
		return fmt.Errorf("set feedback: %w", ErrAlreadyFinalized)
	}
	s.feedback = text
	return nil
}

// Complete transitions the session to approved or changes_requested and
// resolves the completion signal with the terminal result. This is the only
// success path that unblocks waiters. Completing a non-pending session fails
// with ErrAlreadyFinalized.
func (s *Session) Complete(status Status, feedback string) (Result, error) {
	if status != StatusApproved && status != StatusChangesRequested {
		return Result{}, fmt.Errorf("%w: status must be %q or %q, got %q",
			ErrInvalidRequest, StatusApproved, StatusChangesRequested, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPending {
		return Result{}, fmt.Errorf("complete: session is %s: %w", s.status, ErrAlreadyFinalized)
	}

	s.status = status
	if feedback != "" {
		s.feedback = feedback
	}
	s.disarmTimer()

	res := Result{
		Status:     status,
		Feedback:   s.feedback,
		Comments:   s.copyComments(),
		ResolvedAt: time.Now(),
	}
	s.signal.Resolve(res)
	return res, nil
}

// Cancel transitions a pending session to cancelled and rejects the
// completion signal with the given reason. Cancelling a non-pending session
// is a silent no-op; the return value reports whether this call won the
// transition. This covers a timer firing after manual completion as well as
// double-cancel.
func (s *Session) Cancel(reason string) bool {
	if reason == "" {
		reason = "Review cancelled"
	}
	return s.cancelWith(fmt.Errorf("%w: %s", ErrReviewCancelled, reason))
}

func (s *Session) cancelWith(cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPending {
		return false
	}

	s.status = StatusCancelled
	s.disarmTimer()
	s.signal.Reject(cause)
	return true
}

// disarmTimer stops the auto-cancel timer. Caller must hold mu.
func (s *Session) disarmTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) copyComments() []Comment {
	out := make([]Comment, len(s.comments))
	copy(out, s.comments)
	return out
}

// SessionSnapshot is a deterministic, transport-ready view of all session
// fields. Building it has no side effects.
type SessionSnapshot struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Files       []File    `json:"files"`
	Comments    []Comment `json:"comments"`
	Feedback    string    `json:"feedback,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Snapshot returns the session's current state as one consistent view.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SessionSnapshot{
		ID:          s.id,
		Title:       s.title,
		Description: s.description,
		Status:      s.status,
		Files:       s.files,
		Comments:    s.copyComments(),
		Feedback:    s.feedback,
		CreatedAt:   s.createdAt,
	}
}

// Summary is the lightweight listing projection of a session.
type Summary struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	FilesCount  int       `json:"files_count"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summarize returns the session's listing projection.
func (s *Session) Summarize() Summary {
	return Summary{
		ID:          s.id,
		Status:      s.Status(),
		FilesCount:  len(s.files),
		Title:       s.title,
		Description: s.description,
		CreatedAt:   s.createdAt,
	}
}
