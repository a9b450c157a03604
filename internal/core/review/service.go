package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Events receives domain notifications from the service. Implementations
// must not block; the event bus adapter in the server wiring satisfies this.
type Events interface {
	SessionCreated(s Summary)
	// SessionResolved fires once per session on its terminal transition.
	// Exactly one of res/err is meaningful: err is nil for completed
	// sessions and carries the cancel/timeout cause otherwise.
	SessionResolved(id string, res Result, err error)
	CommentAdded(sessionID string, c Comment)
	CommentDeleted(sessionID, commentID string)
}

type nopEvents struct{}

func (nopEvents) SessionCreated(Summary)                {}
func (nopEvents) SessionResolved(string, Result, error) {}
func (nopEvents) CommentAdded(string, Comment)          {}
func (nopEvents) CommentDeleted(string, string)         {}

// Service is the orchestration façade over the registry and session
// entities. It owns input validation, the default session timeout, and
// event publication; entities own their own state transitions.
type Service struct {
	registry *Registry
	events   Events
	log      zerolog.Logger
	timeout  time.Duration
}

// NewService creates a review service. A nil events sink disables
// notifications. timeout is the default auto-cancel duration applied to
// sessions created without an explicit one; zero disables the timer.
func NewService(registry *Registry, events Events, logger zerolog.Logger, timeout time.Duration) *Service {
	if events == nil {
		events = nopEvents{}
	}
	return &Service{
		registry: registry,
		events:   events,
		log:      logger,
		timeout:  timeout,
	}
}

// CreateSession constructs and registers a pending session over the given
// file snapshot. The file list must be non-empty; file extraction happens
// before this call and its failures never reach the registry.
func (svc *Service) CreateSession(files []File, opts Options) (*Session, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	if opts.Timeout == 0 {
		opts.Timeout = svc.timeout
	}

	s := NewSession(files, opts)
	svc.registry.Set(s)

	svc.log.Info().
		Str("session_id", s.ID()).
		Int("files", len(files)).
		Str("title", opts.Title).
		Msg("review session created")

	svc.events.SessionCreated(s.Summarize())

	// The notifier is a second consumer of the completion signal: it
	// observes the same outcome the blocked caller does, whichever of
	// complete, cancel, or timeout fires it.
	go svc.notifyResolved(s)

	return s, nil
}

func (svc *Service) notifyResolved(s *Session) {
	res, err := s.Signal().Wait(context.Background())
	if err != nil {
		svc.log.Info().Str("session_id", s.ID()).Str("cause", err.Error()).Msg("review session cancelled")
	} else {
		svc.log.Info().Str("session_id", s.ID()).Str("status", string(res.Status)).Msg("review session completed")
	}
	svc.events.SessionResolved(s.ID(), res, err)
}

// Get returns the session for id.
func (svc *Service) Get(id string) (*Session, error) {
	s, ok := svc.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// List returns lightweight summaries of all sessions, newest first.
func (svc *Service) List() []Summary {
	sessions := svc.registry.All()

	out := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Summarize())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Remove deletes a session from the registry after its result has been
// consumed. A still-pending session is cancelled first so its waiters and
// notifier are released.
func (svc *Service) Remove(id string) bool {
	if s, ok := svc.registry.Get(id); ok {
		s.Cancel("Review session removed")
	}
	return svc.registry.Delete(id)
}

// AddComment validates and attaches a comment to a pending session.
func (svc *Service) AddComment(id string, c Comment) (Comment, error) {
	if err := validateComment(c); err != nil {
		return Comment{}, err
	}

	s, err := svc.Get(id)
	if err != nil {
		return Comment{}, err
	}

	if c.Side == "" {
		c.Side = SideNew
	}

	created, err := s.AddComment(c)
	if err != nil {
		return Comment{}, err
	}

	svc.events.CommentAdded(id, created)
	return created, nil
}

func validateComment(c Comment) error {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("%w: comment text is required", ErrInvalidRequest)
	}
	if c.StartLine < 1 {
		return fmt.Errorf("%w: start line must be >= 1, got %d", ErrInvalidRequest, c.StartLine)
	}
	if c.EndLine < c.StartLine {
		return fmt.Errorf("%w: end line %d before start line %d", ErrInvalidRequest, c.EndLine, c.StartLine)
	}
	if c.Side != "" && c.Side != SideOld && c.Side != SideNew {
		return fmt.Errorf("%w: side must be %q or %q, got %q", ErrInvalidRequest, SideOld, SideNew, c.Side)
	}
	return nil
}

// DeleteComment removes a comment from a pending session.
func (svc *Service) DeleteComment(id, commentID string) error {
	s, err := svc.Get(id)
	if err != nil {
		return err
	}

	if err := s.DeleteComment(commentID); err != nil {
		return err
	}

	svc.events.CommentDeleted(id, commentID)
	return nil
}

// SetFeedback replaces the general feedback on a pending session.
func (svc *Service) SetFeedback(id, text string) error {
	s, err := svc.Get(id)
	if err != nil {
		return err
	}
	return s.SetFeedback(text)
}

// Complete records the human decision and unblocks all waiters.
func (svc *Service) Complete(id string, status Status, feedback string) (Result, error) {
	s, err := svc.Get(id)
	if err != nil {
		return Result{}, err
	}
	return s.Complete(status, feedback)
}

// Cancel cancels a pending session. Cancelling a session that already
// reached a terminal state is a no-op, matching the entity semantics.
func (svc *Service) Cancel(id, reason string) error {
	s, err := svc.Get(id)
	if err != nil {
		return err
	}
	s.Cancel(reason)
	return nil
}

// WaitStatus is the poll/wait projection of a session returned by Await.
// Terminal fields are populated only once the session has resolved.
type WaitStatus struct {
	SessionID  string     `json:"session_id"`
	Status     Status     `json:"status"`
	Feedback   string     `json:"feedback,omitempty"`
	Comments   []Comment  `json:"comments,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Await implements the wait-for-completion operation in both modes.
//
// With wait=false it returns the current status immediately; the terminal
// payload (feedback, comments, reason) is included only when the session has
// resolved. With wait=true it suspends on the completion signal until the
// session resolves or ctx is done; a session resolved by cancel or timeout
// surfaces as ErrReviewCancelled/ErrReviewTimedOut alongside a cancelled
// status projection, so transport layers can report the business outcome
// without re-parsing the error. Awaiting an already resolved session
// returns the stored outcome without blocking.
func (svc *Service) Await(ctx context.Context, id string, wait bool) (WaitStatus, error) {
	s, err := svc.Get(id)
	if err != nil {
		return WaitStatus{}, err
	}

	if !wait {
		ws := WaitStatus{SessionID: id, Status: s.Status()}
		if res, cause, fired := s.Signal().Outcome(); fired {
			if cause != nil {
				ws.Reason = reasonFromCause(cause)
			} else {
				ws.Feedback = res.Feedback
				ws.Comments = res.Comments
				ws.ResolvedAt = &res.ResolvedAt
			}
		}
		return ws, nil
	}

	res, err := s.Signal().Wait(ctx)
	if err != nil {
		if errors.Is(err, ErrReviewCancelled) || errors.Is(err, ErrReviewTimedOut) {
			return WaitStatus{
				SessionID: id,
				Status:    StatusCancelled,
				Reason:    reasonFromCause(err),
			}, err
		}
		return WaitStatus{}, err
	}

	return WaitStatus{
		SessionID:  id,
		Status:     res.Status,
		Feedback:   res.Feedback,
		Comments:   res.Comments,
		ResolvedAt: &res.ResolvedAt,
	}, nil
}

// reasonFromCause strips the sentinel prefix from a stored rejection so the
// poll projection carries just the human-readable reason.
func reasonFromCause(cause error) string {
	msg := cause.Error()
	for _, sentinel := range []error{ErrReviewCancelled, ErrReviewTimedOut} {
		if errors.Is(cause, sentinel) {
			if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
				return rest
			}
		}
	}
	return msg
}
