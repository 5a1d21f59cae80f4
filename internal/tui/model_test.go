package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/docchat/internal/backend"
	"github.com/kalambet/docchat/internal/render"
	"github.com/kalambet/docchat/internal/session"
)

type fakeBackend struct {
	requests atomic.Int32
	fail     atomic.Bool
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	w.Header().Set("Content-Type", "application/json")
	if f.fail.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"detail": "index unavailable"})
		return
	}
	switch r.URL.Path {
	case "/upload":
		json.NewEncoder(w).Encode(map[string]any{"document_id": "d1", "chunks_count": 7})
	case "/chat":
		var req backend.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"response": "answer to " + req.Message,
			"sources": []map[string]any{
				{"filename": "policy.pdf", "chunk_index": 4, "similarity_score": 0.9, "text": "limit is 10%"},
			},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestModel(t *testing.T) (Model, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL)
	m := New(session.NewUploadController(client), session.NewQueryController(client), render.DefaultOptions(), srv.URL)
	return m, fb
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%%EOF\n"), 0o644))
	return path
}

func press(t *testing.T, m Model, key tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: key})
	return next.(Model), cmd
}

func deliver(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestUpload_NoFileShowsPrompt(t *testing.T) {
	m, fb := newTestModel(t)

	m, cmd := press(t, m, tea.KeyEnter)

	assert.Nil(t, cmd)
	assert.Equal(t, session.ErrNoFileSelected.Error(), m.notice)
	assert.Equal(t, session.Idle, m.uploads.State().Phase)
	assert.Zero(t, fb.requests.Load())
	assert.Contains(t, m.View(), "choose a file first")
}

func TestUpload_MissingPathShowsPrompt(t *testing.T) {
	m, fb := newTestModel(t)
	m.path.SetValue(filepath.Join(t.TempDir(), "absent.pdf"))

	m, cmd := press(t, m, tea.KeyEnter)

	assert.Nil(t, cmd)
	assert.Contains(t, m.notice, "absent.pdf")
	assert.Zero(t, fb.requests.Load())
}

func TestUpload_Success(t *testing.T) {
	m, fb := newTestModel(t)
	m.path.SetValue(writePDF(t))

	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, session.InProgress, m.uploads.State().Phase)
	assert.Contains(t, m.View(), session.StatusUploading)

	m = deliver(t, m, cmd())

	st := m.uploads.State()
	assert.Equal(t, session.Succeeded, st.Phase)
	assert.Equal(t, &session.UploadResult{DocumentID: "d1", ChunksCount: 7}, st.Result)
	assert.Equal(t, int32(1), fb.requests.Load())
	view := m.View()
	assert.Contains(t, view, session.StatusUploaded)
	assert.Contains(t, view, "document d1, 7 chunks")
}

func TestQuestion_EmptyShowsPrompt(t *testing.T) {
	m, fb := newTestModel(t)
	m, _ = press(t, m, tea.KeyTab)
	require.Equal(t, questionField, m.focus)

	m, cmd := press(t, m, tea.KeyEnter)

	assert.Nil(t, cmd)
	assert.Equal(t, session.ErrEmptyQuestion.Error(), m.notice)
	assert.Equal(t, session.Idle, m.queries.State().Phase)
	assert.Zero(t, fb.requests.Load())
}

func TestQuestion_AnswerAndSources(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = press(t, m, tea.KeyTab)
	m.question.SetValue("What is the limit?")

	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), session.StatusThinking)

	m = deliver(t, m, cmd())

	view := m.View()
	assert.Contains(t, view, "answer to What is the limit?")
	assert.Contains(t, view, "policy.pdf — chunk 4 (score: 0.900)")
	assert.Contains(t, view, "limit is 10%")
	assert.NotContains(t, view, session.StatusThinking)
}

func TestQuestion_OlderAnswerArrivingLateIsDiscarded(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = press(t, m, tea.KeyTab)

	m.question.SetValue("first")
	m, first := press(t, m, tea.KeyEnter)
	m.question.SetValue("second")
	m, second := press(t, m, tea.KeyEnter)

	firstMsg, secondMsg := first(), second()
	m = deliver(t, m, secondMsg)
	m = deliver(t, m, firstMsg)

	assert.Equal(t, "answer to second", m.queries.State().Exchange.Answer)
	assert.Contains(t, m.View(), "answer to second")
	assert.NotContains(t, m.View(), "answer to first")
}

func TestQuestion_FailureShowsError(t *testing.T) {
	m, fb := newTestModel(t)
	fb.fail.Store(true)
	m, _ = press(t, m, tea.KeyTab)
	m.question.SetValue("anything")

	m, cmd := press(t, m, tea.KeyEnter)
	m = deliver(t, m, cmd())

	assert.Equal(t, session.Failed, m.queries.State().Phase)
	assert.Contains(t, m.View(), "Error: index unavailable")
}

func TestTabTogglesFocus(t *testing.T) {
	m, _ := newTestModel(t)
	assert.True(t, m.path.Focused())

	m, _ = press(t, m, tea.KeyTab)
	assert.True(t, m.question.Focused())
	assert.False(t, m.path.Focused())

	m, _ = press(t, m, tea.KeyTab)
	assert.True(t, m.path.Focused())
}

func TestQuitKeys(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := press(t, m, tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestUpload_FailedReuploadKeepsDocumentLine(t *testing.T) {
	m, fb := newTestModel(t)
	m.path.SetValue(writePDF(t))
	m, cmd := press(t, m, tea.KeyEnter)
	m = deliver(t, m, cmd())

	fb.fail.Store(true)
	m, cmd = press(t, m, tea.KeyEnter)
	assert.Contains(t, m.View(), "document d1, 7 chunks", "shown while the next upload runs")

	m = deliver(t, m, cmd())

	view := m.View()
	assert.Equal(t, session.Failed, m.uploads.State().Phase)
	assert.Contains(t, view, "Error: index unavailable")
	assert.Contains(t, view, "policy.pdf: document d1, 7 chunks")
}

func TestQuestion_FailureKeepsPreviousAnswer(t *testing.T) {
	m, fb := newTestModel(t)
	m, _ = press(t, m, tea.KeyTab)
	m.question.SetValue("first")
	m, cmd := press(t, m, tea.KeyEnter)
	m = deliver(t, m, cmd())

	fb.fail.Store(true)
	m.question.SetValue("second")
	m, cmd = press(t, m, tea.KeyEnter)
	m = deliver(t, m, cmd())

	view := m.View()
	assert.Contains(t, view, "Error: index unavailable")
	assert.Contains(t, view, "answer to first")
}
