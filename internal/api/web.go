package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/docchat/internal/session"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxUploadBodySize  = 64 << 20 // 64MB
	maxMemoryMultipart = 8 << 20
)

//go:embed assets/page.html
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "assets/page.html"))

// Web serves the browser page and its JSON endpoints. Submissions return as
// soon as the request is issued; the network call resolves in the
// background and the page polls /api/state.
type Web struct {
	deps     Deps
	router   chi.Router
	inflight sync.WaitGroup
}

// NewWeb builds the page handler around deps.
func NewWeb(deps Deps) *Web {
	h := &Web{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", h.handlePage)
	r.Get("/health", handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleState)
		r.Post("/upload", h.handleUpload)
		r.Post("/chat", h.handleChat)
	})

	h.router = r
	return h
}

func (h *Web) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Wait blocks until every background network call has resolved.
func (h *Web) Wait() {
	h.inflight.Wait()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Web) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Backend string
		State   StateView
	}{h.deps.Backend, Snapshot(h.deps)}
	if err := pageTemplate.Execute(w, data); err != nil {
		slog.Error("rendering page", "error", err)
	}
}

func (h *Web) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Snapshot(h.deps))
}

// handleUpload selects the posted file and starts an upload. A request
// without a file part re-uploads the previous selection, if any.
func (h *Web) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(maxMemoryMultipart); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid upload body: %v", err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading file: %v", readErr)
			return
		}
		h.deps.Uploads.SelectFile(session.FromBytes(header.Filename, header.Header.Get("Content-Type"), data))
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid upload body: %v", err)
		return
	}

	t, err := h.deps.Uploads.Begin()
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		h.deps.Uploads.Resolve(h.deps.Uploads.Perform(ctx, t))
	}()

	writeJSON(w, http.StatusAccepted, Snapshot(h.deps))
}

type chatBody struct {
	Message string `json:"message"`
}

func (h *Web) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var body chatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}

	h.deps.Queries.SetQuestion(body.Message)
	t, err := h.deps.Queries.Begin()
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		h.deps.Queries.Resolve(h.deps.Queries.Perform(ctx, t))
	}()

	writeJSON(w, http.StatusAccepted, Snapshot(h.deps))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
