package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kalambet/docchat/internal/backend"
)

// Uploader sends a document to the ingestion endpoint.
type Uploader interface {
	Upload(ctx context.Context, name, mediaType string, body io.Reader) (*backend.UploadResponse, error)
}

// UploadResult identifies a document the backend has ingested.
type UploadResult struct {
	DocumentID  string `json:"document_id"`
	ChunksCount int    `json:"chunks_count"`
}

// UploadState is a snapshot of the upload controller.
type UploadState struct {
	Phase Phase
	// Seq is the sequence number of the attempt this state describes.
	Seq uint64
	// FileName is the file of the attempt this state describes.
	FileName string
	// Result is the latest successful upload. Later attempts, in progress or
	// failed, leave it in place until another upload succeeds.
	Result *UploadResult
	// ResultFile is the file Result was produced from.
	ResultFile string
	Message    string
	// Pending is true while an attempt newer than the displayed one is out.
	Pending bool
}

// Status returns the user-facing status line.
func (s UploadState) Status() string {
	switch s.Phase {
	case InProgress:
		return StatusUploading
	case Succeeded:
		return StatusUploaded
	case Failed:
		return failedStatus(s.Message)
	default:
		return ""
	}
}

// UploadTicket is an issued upload attempt waiting for its network call.
type UploadTicket struct {
	Seq  uint64
	File SelectedFile
}

// UploadOutcome is the resolution of one upload attempt.
type UploadOutcome struct {
	Seq    uint64
	File   string
	Result *UploadResult
	Err    error
}

// UploadController owns the selected file and the upload lifecycle.
type UploadController struct {
	client Uploader

	mu       sync.Mutex
	selected *SelectedFile
	seq      sequencer
	state    UploadState

	last     *UploadResult
	lastFile string
}

// NewUploadController creates an idle controller that uploads through client.
func NewUploadController(client Uploader) *UploadController {
	return &UploadController{client: client}
}

// SelectFile replaces the current selection unconditionally.
func (c *UploadController) SelectFile(f SelectedFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = &f
}

// Selected returns the current selection, if any.
func (c *UploadController) Selected() (SelectedFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return SelectedFile{}, false
	}
	return *c.selected, true
}

// State returns a snapshot of the controller.
func (c *UploadController) State() UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *UploadController) snapshot() UploadState {
	s := c.state
	s.Pending = c.seq.pending()
	if c.last != nil {
		r := *c.last
		s.Result = &r
		s.ResultFile = c.lastFile
	}
	return s
}

// Begin issues a new upload attempt and moves the controller to InProgress.
// It returns ErrNoFileSelected, without touching state, if nothing is selected.
func (c *UploadController) Begin() (UploadTicket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == nil {
		return UploadTicket{}, ErrNoFileSelected
	}

	t := UploadTicket{Seq: c.seq.next(), File: *c.selected}
	c.state = UploadState{
		Phase:    InProgress,
		Seq:      t.Seq,
		FileName: t.File.Name,
	}
	slog.Info("upload issued", "seq", t.Seq, "file", t.File.Name, "media_type", t.File.MediaType, "size", t.File.Size)
	return t, nil
}

// Perform makes the single network call for t. It does not touch controller
// state, so it may run off the event loop.
func (c *UploadController) Perform(ctx context.Context, t UploadTicket) UploadOutcome {
	out := UploadOutcome{Seq: t.Seq, File: t.File.Name}

	if t.File.Open == nil {
		out.Err = fmt.Errorf("reading %s: no content", t.File.Name)
		return out
	}
	body, err := t.File.Open()
	if err != nil {
		out.Err = fmt.Errorf("reading %s: %w", t.File.Name, err)
		return out
	}
	defer body.Close()

	resp, err := c.client.Upload(ctx, t.File.Name, t.File.MediaType, body)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = &UploadResult{DocumentID: *resp.DocumentID, ChunksCount: *resp.ChunksCount}
	return out
}

// Resolve applies o unless a newer attempt's result is already displayed.
// It reports whether the outcome was applied.
func (c *UploadController) Resolve(o UploadOutcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seq.accept(o.Seq) {
		slog.Debug("stale upload result discarded", "seq", o.Seq, "shown", c.seq.shown)
		return false
	}

	if o.Err != nil {
		msg := backend.Message(o.Err)
		c.state = UploadState{Phase: Failed, Seq: o.Seq, FileName: o.File, Message: msg}
		slog.Warn("upload failed", "seq", o.Seq, "file", o.File, "error", o.Err)
		return true
	}

	c.state = UploadState{Phase: Succeeded, Seq: o.Seq, FileName: o.File}
	c.last, c.lastFile = o.Result, o.File
	slog.Info("upload succeeded", "seq", o.Seq, "file", o.File,
		"document_id", o.Result.DocumentID, "chunks", o.Result.ChunksCount)
	return true
}

// Submit runs one full attempt synchronously and returns the resulting state.
func (c *UploadController) Submit(ctx context.Context) (UploadState, error) {
	t, err := c.Begin()
	if err != nil {
		return c.State(), err
	}
	c.Resolve(c.Perform(ctx, t))
	return c.State(), nil
}
