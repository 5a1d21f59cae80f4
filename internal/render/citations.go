// Package render projects answer citations into display lines. It holds no
// state; every function is a pure transform.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/docchat/internal/session"
)

const truncationMarker = "..."

// Options control the citation projection.
type Options struct {
	// Placeholder stands in for a missing filename.
	Placeholder string
	// ExcerptLength caps the excerpt in runes.
	ExcerptLength int
	// ScorePrecision is the number of decimals shown for a score.
	ScorePrecision int
}

// DefaultOptions returns the stock projection settings.
func DefaultOptions() Options {
	return Options{
		Placeholder:    "Unknown",
		ExcerptLength:  200,
		ScorePrecision: 3,
	}
}

// Line is one citation ready for display. Score and Excerpt are empty when
// the backend did not send them.
type Line struct {
	Rank    int    `json:"rank"`
	Source  string `json:"source"`
	Chunk   string `json:"chunk"`
	Score   string `json:"score,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Heading renders the line's first row, e.g. "policy.pdf — chunk 4 (score: 0.912)".
func (l Line) Heading() string {
	var b strings.Builder
	b.WriteString(l.Source)
	b.WriteString(" — chunk ")
	b.WriteString(l.Chunk)
	if l.Score != "" {
		fmt.Fprintf(&b, " (score: %s)", l.Score)
	}
	return b.String()
}

// Citations projects sources in the order given. A nil or empty input yields
// an empty, non-nil slice.
func Citations(sources []session.SourceCitation, opts Options) []Line {
	lines := make([]Line, 0, len(sources))
	for i, s := range sources {
		lines = append(lines, Citation(i+1, s, opts))
	}
	return lines
}

// Citation projects a single source.
func Citation(rank int, s session.SourceCitation, opts Options) Line {
	line := Line{
		Rank:   rank,
		Source: opts.Placeholder,
		Chunk:  "?",
	}
	if s.Filename != nil && *s.Filename != "" {
		line.Source = *s.Filename
	}
	if s.ChunkIndex != nil {
		line.Chunk = strconv.Itoa(*s.ChunkIndex)
	}
	if s.SimilarityScore != nil {
		line.Score = strconv.FormatFloat(*s.SimilarityScore, 'f', opts.ScorePrecision, 64)
	}
	if s.Excerpt != nil {
		line.Excerpt = Excerpt(*s.Excerpt, opts.ExcerptLength)
	}
	return line
}

// Excerpt caps text at limit runes, appending "..." when anything was cut.
// A non-positive limit leaves text unchanged.
func Excerpt(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + truncationMarker
}

// Text renders lines as an indented plain-text block, one heading per
// citation followed by its excerpt.
func Text(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "%d. %s\n", l.Rank, l.Heading())
		if l.Excerpt != "" {
			fmt.Fprintf(&b, "   %s\n", l.Excerpt)
		}
	}
	return b.String()
}
