package backend

import (
	"encoding/json"
	"math"
)

// UploadResponse is the success body of POST /upload. Both fields are
// required; pointers let the decoder tell "absent" from "zero".
type UploadResponse struct {
	DocumentID  *string `json:"document_id"`
	ChunksCount *int    `json:"chunks_count"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the success body of POST /chat.
type ChatResponse struct {
	Response *string  `json:"response"`
	Sources  []Source `json:"sources"`
}

// Source is one cited chunk as returned by the backend. Every field is
// optional on the wire, and a field of the wrong type decodes as absent
// rather than failing the whole answer.
type Source struct {
	Filename        *string  `json:"filename,omitempty"`
	ChunkIndex      *int     `json:"chunk_index,omitempty"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
	Text            *string  `json:"text,omitempty"`
}

func (s *Source) UnmarshalJSON(data []byte) error {
	*s = Source{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	s.Filename = optional[string](raw["filename"])
	s.ChunkIndex = chunkIndex(raw["chunk_index"])
	s.SimilarityScore = optional[float64](raw["similarity_score"])
	s.Text = optional[string](raw["text"])
	return nil
}

func optional[T any](raw json.RawMessage) *T {
	if len(raw) == 0 {
		return nil
	}
	var v *T
	if json.Unmarshal(raw, &v) != nil {
		return nil
	}
	return v
}

// chunkIndex accepts integral numbers in any notation, so 3.0 and 3e0 are 3.
func chunkIndex(raw json.RawMessage) *int {
	n := optional[json.Number](raw)
	if n == nil {
		return nil
	}
	if i, err := n.Int64(); err == nil {
		v := int(i)
		return &v
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt || f > math.MaxInt {
		return nil
	}
	v := int(f)
	return &v
}

// Health is the body of GET /.
type Health struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}
