// Package session holds the client-side interaction state: one controller
// for uploads and one for questions, each a small state machine whose
// results are ordered by request sequence number.
package session

import "errors"

// Phase is the lifecycle position of a controller.
type Phase int

const (
	Idle Phase = iota
	InProgress
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case InProgress:
		return "in_progress"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Validation errors. They never reach the network and never move a
// controller to Failed.
var (
	ErrNoFileSelected = errors.New("choose a file first")
	ErrEmptyQuestion  = errors.New("type a question first")
)

// Status signals shown while and after a request runs.
const (
	StatusUploading = "Uploading..."
	StatusUploaded  = "Uploaded"
	StatusThinking  = "Thinking..."
)

func failedStatus(msg string) string {
	return "Error: " + msg
}

// sequencer stamps requests and decides which resolutions may be displayed.
// A resolution is shown only if it is newer than the one on display.
type sequencer struct {
	issued uint64
	shown  uint64
}

func (s *sequencer) next() uint64 {
	s.issued++
	return s.issued
}

func (s *sequencer) accept(seq uint64) bool {
	if seq <= s.shown || seq > s.issued {
		return false
	}
	s.shown = seq
	return true
}

// pending reports whether a request newer than the displayed one is still out.
func (s *sequencer) pending() bool {
	return s.issued > s.shown
}
