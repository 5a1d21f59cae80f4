package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kalambet/docchat/internal/backend"
)

// Asker sends a question to the chat endpoint.
type Asker interface {
	Chat(ctx context.Context, message string) (*backend.ChatResponse, error)
}

// SourceCitation is one ranked passage backing an answer. Optional fields
// are nil when the backend omitted them.
type SourceCitation struct {
	Filename        *string  `json:"filename,omitempty"`
	ChunkIndex      *int     `json:"chunk_index,omitempty"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
	Excerpt         *string  `json:"text,omitempty"`
}

// ChatExchange is one answered question. Sources keep the backend's order,
// which is the relevance ranking.
type ChatExchange struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Sources  []SourceCitation `json:"sources"`
}

// QueryState is a snapshot of the query controller.
type QueryState struct {
	Phase    Phase
	Seq      uint64
	Question string
	// Exchange is the latest answered question. It stays on display while a
	// newer question is thinking or after it fails, until another succeeds.
	Exchange *ChatExchange
	Message  string
	Pending  bool
}

// Status returns the user-facing status line.
func (s QueryState) Status() string {
	switch s.Phase {
	case InProgress:
		return StatusThinking
	case Failed:
		return failedStatus(s.Message)
	default:
		return ""
	}
}

// QueryTicket is an issued question waiting for its network call.
type QueryTicket struct {
	Seq      uint64
	Question string
}

// QueryOutcome is the resolution of one question.
type QueryOutcome struct {
	Seq      uint64
	Exchange *ChatExchange
	Question string
	Err      error
}

// QueryController owns the question text and the chat lifecycle.
type QueryController struct {
	client Asker

	mu       sync.Mutex
	question string
	seq      sequencer
	state    QueryState
	last     *ChatExchange
}

// NewQueryController creates an idle controller that asks through client.
func NewQueryController(client Asker) *QueryController {
	return &QueryController{client: client}
}

// SetQuestion stores text verbatim.
func (c *QueryController) SetQuestion(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.question = text
}

// Question returns the current question text.
func (c *QueryController) Question() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.question
}

// State returns a snapshot of the controller.
func (c *QueryController) State() QueryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *QueryController) snapshot() QueryState {
	s := c.state
	s.Pending = c.seq.pending()
	s.Exchange = c.last
	return s
}

// Begin issues a question and moves the controller to InProgress. An empty
// question returns ErrEmptyQuestion and leaves state unchanged.
func (c *QueryController) Begin() (QueryTicket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.question == "" {
		return QueryTicket{}, ErrEmptyQuestion
	}

	t := QueryTicket{Seq: c.seq.next(), Question: c.question}
	c.state = QueryState{Phase: InProgress, Seq: t.Seq, Question: t.Question}
	slog.Info("question issued", "seq", t.Seq, "length", len(t.Question))
	return t, nil
}

// Perform makes the single network call for t without touching state.
func (c *QueryController) Perform(ctx context.Context, t QueryTicket) QueryOutcome {
	out := QueryOutcome{Seq: t.Seq, Question: t.Question}

	resp, err := c.client.Chat(ctx, t.Question)
	if err != nil {
		out.Err = err
		return out
	}

	sources := make([]SourceCitation, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		sources = append(sources, SourceCitation{
			Filename:        s.Filename,
			ChunkIndex:      s.ChunkIndex,
			SimilarityScore: s.SimilarityScore,
			Excerpt:         s.Text,
		})
	}
	out.Exchange = &ChatExchange{
		Question: t.Question,
		Answer:   *resp.Response,
		Sources:  sources,
	}
	return out
}

// Resolve applies o unless a newer question's result is already displayed.
func (c *QueryController) Resolve(o QueryOutcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seq.accept(o.Seq) {
		slog.Debug("stale chat result discarded", "seq", o.Seq, "shown", c.seq.shown)
		return false
	}

	if o.Err != nil {
		c.state = QueryState{Phase: Failed, Seq: o.Seq, Question: o.Question, Message: backend.Message(o.Err)}
		slog.Warn("question failed", "seq", o.Seq, "error", o.Err)
		return true
	}

	c.state = QueryState{Phase: Succeeded, Seq: o.Seq, Question: o.Question}
	c.last = o.Exchange
	slog.Info("question answered", "seq", o.Seq, "sources", len(o.Exchange.Sources))
	return true
}

// Submit asks the current question synchronously and returns the resulting state.
func (c *QueryController) Submit(ctx context.Context) (QueryState, error) {
	t, err := c.Begin()
	if err != nil {
		return c.State(), err
	}
	c.Resolve(c.Perform(ctx, t))
	return c.State(), nil
}
