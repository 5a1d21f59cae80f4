package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kalambet/docchat/internal/backend"
	"github.com/kalambet/docchat/internal/render"
	"github.com/kalambet/docchat/internal/session"
)

// fakeBackend mimics the ingestion service's /upload and /chat endpoints.
type fakeBackend struct {
	mu        sync.Mutex
	requests  int
	uploads   []string // filename|content-type per upload
	questions []string
	detail    string // when set, every call fails with this detail
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	w.Header().Set("Content-Type", "application/json")
	if f.detail != "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": f.detail})
		return
	}

	switch r.URL.Path {
	case "/upload":
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file.Close()
		f.uploads = append(f.uploads, header.Filename+"|"+header.Header.Get("Content-Type"))
		json.NewEncoder(w).Encode(map[string]any{"document_id": "d1", "chunks_count": 7})
	case "/chat":
		var req backend.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.questions = append(f.questions, req.Message)
		json.NewEncoder(w).Encode(map[string]any{
			"response": "Ten percent.",
			"sources": []map[string]any{
				{"filename": "policy.pdf", "chunk_index": 4, "similarity_score": 0.91234, "text": "The limit is 10%."},
				{"chunk_index": 2},
			},
		})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeBackend) seen() (uploads, questions []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...), append([]string(nil), f.questions...)
}

func (f *fakeBackend) fail(detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detail = detail
}

func newTestDeps(t *testing.T) (Deps, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL)
	return Deps{
		Uploads: session.NewUploadController(client),
		Queries: session.NewQueryController(client),
		Render:  render.DefaultOptions(),
		Backend: srv.URL,
	}, fb
}
