package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/colonyops/holdpoint/internal/core/git"
	"github.com/colonyops/holdpoint/internal/core/review"
)

type createSessionRequest struct {
	Source      git.SourceSpec `json:"source"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
}

type createSessionResponse struct {
	SessionID  string `json:"session_id"`
	FilesCount int    `json:"files_count"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	files, err := s.extractor.Extract(r.Context(), req.Source)
	if err != nil {
		s.log.Warn().Err(err).Str("source", string(req.Source.Type)).Msg("file extraction failed")
		writeError(w, err)
		return
	}

	session, err := s.service.CreateSession(files, review.Options{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	url := fmt.Sprintf("%s/review/%s", s.baseURL, session.ID())
	if s.opener != nil {
		// Detached from the request context: the creating call should not
		// wait on, or be failed by, the browser launch.
		go s.opener.OpenBestEffort(context.Background(), url)
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:  session.ID(),
		FilesCount: len(session.Files()),
		Title:      session.Title(),
		URL:        url,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.service.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	wait := true
	if raw := r.URL.Query().Get("wait"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid wait parameter %q", review.ErrInvalidRequest, raw))
			return
		}
		wait = parsed
	}

	status, err := s.service.Await(r.Context(), r.PathValue("id"), wait)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, status)
	case errors.Is(err, review.ErrReviewCancelled), errors.Is(err, review.ErrReviewTimedOut):
		// Business outcomes for the waiter, not request failures.
		writeJSON(w, http.StatusOK, status)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away while suspended; nothing useful to write.
	default:
		writeError(w, err)
	}
}

type addCommentRequest struct {
	FilePath  string      `json:"file_path"`
	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"`
	Line      int         `json:"line,omitempty"` // single-line shorthand
	Side      review.Side `json:"side,omitempty"`
	Text      string      `json:"text"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.StartLine == 0 && req.Line > 0 {
		req.StartLine = req.Line
		req.EndLine = req.Line
	}

	comment, err := s.service.AddComment(r.PathValue("id"), review.Comment{
		FilePath:  req.FilePath,
		StartLine: req.StartLine,
		EndLine:   req.EndLine,
		Side:      req.Side,
		Text:      req.Text,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteComment(r.PathValue("id"), r.PathValue("commentID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type setFeedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (s *Server) handleSetFeedback(w http.ResponseWriter, r *http.Request) {
	var req setFeedbackRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.service.SetFeedback(r.PathValue("id"), req.Feedback); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

type completeRequest struct {
	Status   review.Status `json:"status"`
	Feedback string        `json:"feedback,omitempty"`
}

type completeResponse struct {
	SessionID string `json:"session_id"`
	review.Result
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	id := r.PathValue("id")
	result, err := s.service.Complete(id, req.Status, req.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, completeResponse{SessionID: id, Result: result})
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	// Body is optional; an empty or absent one means a plain user cancel.
	var req cancelRequest
	if r.ContentLength > 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "Review cancelled by user"
	}

	id := r.PathValue("id")
	if err := s.service.Cancel(id, req.Reason); err != nil {
		writeError(w, err)
		return
	}

	// Cancel on an already-terminal session is a no-op, so report the
	// status the session actually holds.
	session, err := s.service.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"status":     string(session.Status()),
	})
}
