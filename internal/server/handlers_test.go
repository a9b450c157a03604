package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/holdpoint/internal/core/git"
	"github.com/colonyops/holdpoint/internal/core/review"
	"github.com/colonyops/holdpoint/pkg/executil"
)

type testServer struct {
	*httptest.Server
	service *review.Service
	repoDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repoDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "util.go"), []byte("package main\n"), 0o644))

	registry := review.NewRegistry()
	service := review.NewService(registry, nil, zerolog.Nop(), 0)
	extractor := git.NewExtractor(git.NewExecutor("git", &executil.RecordingExecutor{Strict: true}), zerolog.Nop())

	srv := New("127.0.0.1:0", Options{
		Service:   service,
		Extractor: extractor,
		Logger:    zerolog.Nop(),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		registry.Clear()
	})

	return &testServer{Server: ts, service: service, repoDir: repoDir}
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) createSession(t *testing.T) createSessionResponse {
	t.Helper()

	resp := ts.request(t, http.MethodPost, "/api/sessions", createSessionRequest{
		Source: git.SourceSpec{Type: git.SourceLocal, Dir: ts.repoDir, Paths: []string{"*.go"}},
		Title:  "test review",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[createSessionResponse](t, resp)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createSession(t)
	assert.NotEmpty(t, created.SessionID)
	assert.Equal(t, 2, created.FilesCount)
	assert.Equal(t, "test review", created.Title)
	assert.Contains(t, created.URL, "/review/"+created.SessionID)
}

func TestCreateSession_NoMatchingFiles(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodPost, "/api/sessions", createSessionRequest{
		Source: git.SourceSpec{Type: git.SourceLocal, Dir: ts.repoDir, Paths: []string{"*.rs"}},
	})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateSession_InvalidSource(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodPost, "/api/sessions", createSessionRequest{
		Source: git.SourceSpec{Type: "commit"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Contains(t, body["error"], "commit hash required")
}

func TestGetSession(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)

	resp := ts.request(t, http.MethodGet, "/api/sessions/"+created.SessionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap := decode[review.SessionSnapshot](t, resp)
	assert.Equal(t, created.SessionID, snap.ID)
	assert.Equal(t, review.StatusPending, snap.Status)
	assert.Len(t, snap.Files, 2)
	assert.Equal(t, "go", snap.Files[0].Language)
}

func TestGetSession_NotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/api/sessions/nope", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSessions(t *testing.T) {
	ts := newTestServer(t)
	ts.createSession(t)
	ts.createSession(t)

	resp := ts.request(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Sessions []review.Summary `json:"sessions"`
	}](t, resp)
	assert.Len(t, body.Sessions, 2)
}

func TestComments(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)
	base := "/api/sessions/" + created.SessionID

	resp := ts.request(t, http.MethodPost, base+"/comments", addCommentRequest{
		FilePath:  "main.go",
		StartLine: 2,
		EndLine:   3,
		Text:      "collapse these",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	comment := decode[review.Comment](t, resp)
	assert.NotEmpty(t, comment.ID)
	assert.Equal(t, review.SideNew, comment.Side)

	// Single-line shorthand.
	resp = ts.request(t, http.MethodPost, base+"/comments", map[string]any{
		"file_path": "util.go",
		"line":      1,
		"text":      "package comment missing",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	short := decode[review.Comment](t, resp)
	assert.Equal(t, 1, short.StartLine)
	assert.Equal(t, 1, short.EndLine)

	// Invalid comment.
	resp = ts.request(t, http.MethodPost, base+"/comments", addCommentRequest{FilePath: "main.go", StartLine: 1, EndLine: 1})
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Delete.
	resp = ts.request(t, http.MethodDelete, base+"/comments/"+comment.ID, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodDelete, base+"/comments/"+comment.ID, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteFlow(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)
	base := "/api/sessions/" + created.SessionID

	resp := ts.request(t, http.MethodPost, base+"/feedback", setFeedbackRequest{Feedback: "looks solid"})
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, base+"/complete", completeRequest{Status: review.StatusApproved})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[completeResponse](t, resp)
	assert.Equal(t, created.SessionID, result.SessionID)
	assert.Equal(t, review.StatusApproved, result.Status)
	assert.Equal(t, "looks solid", result.Feedback)

	// Double-complete conflicts.
	resp = ts.request(t, http.MethodPost, base+"/complete", completeRequest{Status: review.StatusChangesRequested})
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestComplete_InvalidStatus(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)

	resp := ts.request(t, http.MethodPost, "/api/sessions/"+created.SessionID+"/complete", completeRequest{Status: "merged"})
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancel(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)
	base := "/api/sessions/" + created.SessionID

	resp := ts.request(t, http.MethodPost, base+"/cancel", cancelRequest{Reason: "obsolete"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "cancelled", body["status"])
}

func TestCancel_AfterCompleteReportsActualStatus(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)
	base := "/api/sessions/" + created.SessionID

	resp := ts.request(t, http.MethodPost, base+"/complete", completeRequest{Status: review.StatusApproved})
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "approved", body["status"])
}

func TestWait_Poll(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)
	base := "/api/sessions/" + created.SessionID

	resp := ts.request(t, http.MethodGet, base+"/wait?wait=false", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ws := decode[review.WaitStatus](t, resp)
	assert.Equal(t, review.StatusPending, ws.Status)

	resp = ts.request(t, http.MethodPost, base+"/complete", completeRequest{Status: review.StatusApproved, Feedback: "go ahead"})
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, base+"/wait?wait=false", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ws = decode[review.WaitStatus](t, resp)
	assert.Equal(t, review.StatusApproved, ws.Status)
	assert.Equal(t, "go ahead", ws.Feedback)
}

func TestWait_InvalidParam(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)

	resp := ts.request(t, http.MethodGet, "/api/sessions/"+created.SessionID+"/wait?wait=maybe", nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWait_BlocksUntilCompletion(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)
	base := "/api/sessions/" + created.SessionID

	type result struct {
		ws   review.WaitStatus
		code int
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get(ts.URL + base + "/wait")
		if err != nil {
			got <- result{code: -1}
			return
		}
		defer func() { _ = resp.Body.Close() }()
		var ws review.WaitStatus
		_ = json.NewDecoder(resp.Body).Decode(&ws)
		got <- result{ws: ws, code: resp.StatusCode}
	}()

	// Give the waiter time to suspend before deciding.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-got:
		t.Fatal("waiter returned before the decision")
	default:
	}

	resp := ts.request(t, http.MethodPost, base+"/complete", completeRequest{Status: review.StatusChangesRequested, Feedback: "nits"})
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case r := <-got:
		require.Equal(t, http.StatusOK, r.code)
		assert.Equal(t, review.StatusChangesRequested, r.ws.Status)
		assert.Equal(t, "nits", r.ws.Feedback)
	case <-time.After(3 * time.Second):
		t.Fatal("waiter was never released")
	}
}

func TestWait_BlockedWaiterSeesCancellation(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)
	base := "/api/sessions/" + created.SessionID

	got := make(chan review.WaitStatus, 1)
	go func() {
		resp, err := http.Get(ts.URL + base + "/wait")
		if err != nil {
			return
		}
		defer func() { _ = resp.Body.Close() }()
		var ws review.WaitStatus
		_ = json.NewDecoder(resp.Body).Decode(&ws)
		got <- ws
	}()

	time.Sleep(50 * time.Millisecond)
	resp := ts.request(t, http.MethodPost, base+"/cancel", cancelRequest{Reason: "plan changed"})
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case ws := <-got:
		assert.Equal(t, review.StatusCancelled, ws.Status)
		assert.Equal(t, "plan changed", ws.Reason)
	case <-time.After(3 * time.Second):
		t.Fatal("waiter was never released")
	}
}

func TestReviewPage(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createSession(t)

	resp := ts.request(t, http.MethodGet, fmt.Sprintf("/review/%s", created.SessionID), nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestErrorStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, errorStatus(review.ErrSessionNotFound))
	assert.Equal(t, http.StatusNotFound, errorStatus(review.ErrCommentNotFound))
	assert.Equal(t, http.StatusConflict, errorStatus(review.ErrAlreadyFinalized))
	assert.Equal(t, http.StatusBadRequest, errorStatus(review.ErrInvalidRequest))
	assert.Equal(t, http.StatusBadRequest, errorStatus(review.ErrNoFiles))
}
