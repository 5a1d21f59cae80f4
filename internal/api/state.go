package api

import (
	"github.com/kalambet/docchat/internal/render"
	"github.com/kalambet/docchat/internal/session"
)

// Deps holds what the local surfaces need. Both surfaces share the same
// controllers, so the page and the MCP tools see one session.
type Deps struct {
	Uploads *session.UploadController
	Queries *session.QueryController
	Render  render.Options
	// Backend is the ingestion service base URL, shown on the page.
	Backend string
}

// StateView is the JSON snapshot of both controllers.
type StateView struct {
	Upload UploadView `json:"upload"`
	Query  QueryView  `json:"query"`
}

type UploadView struct {
	Phase    string `json:"phase"`
	Status   string `json:"status"`
	Pending  bool   `json:"pending"`
	FileName string `json:"file_name,omitempty"`
	Error    string `json:"error,omitempty"`
	// Result is the latest successful upload, whatever the current phase.
	Result     *session.UploadResult `json:"result,omitempty"`
	ResultFile string                `json:"result_file,omitempty"`
}

type QueryView struct {
	Phase    string         `json:"phase"`
	Status   string         `json:"status"`
	Pending  bool           `json:"pending"`
	Question string         `json:"question,omitempty"`
	Answer   string         `json:"answer,omitempty"`
	Sources  []CitationView `json:"sources"`
	Error    string         `json:"error,omitempty"`
}

// CitationView is one rendered source line.
type CitationView struct {
	Rank    int    `json:"rank"`
	Heading string `json:"heading"`
	Source  string `json:"source"`
	Chunk   string `json:"chunk"`
	Score   string `json:"score,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Snapshot reads both controllers and renders the current citations.
func Snapshot(deps Deps) StateView {
	up := deps.Uploads.State()
	q := deps.Queries.State()

	v := StateView{
		Upload: UploadView{
			Phase:      up.Phase.String(),
			Status:     up.Status(),
			Pending:    up.Pending,
			FileName:   up.FileName,
			Result:     up.Result,
			ResultFile: up.ResultFile,
		},
		Query: QueryView{
			Phase:    q.Phase.String(),
			Status:   q.Status(),
			Pending:  q.Pending,
			Question: q.Question,
			Sources:  []CitationView{},
		},
	}
	if up.Phase == session.Failed {
		v.Upload.Error = up.Message
	}
	if q.Phase == session.Failed {
		v.Query.Error = q.Message
	}
	if q.Exchange != nil {
		v.Query.Answer = q.Exchange.Answer
		for _, l := range render.Citations(q.Exchange.Sources, deps.Render) {
			v.Query.Sources = append(v.Query.Sources, CitationView{
				Rank:    l.Rank,
				Heading: l.Heading(),
				Source:  l.Source,
				Chunk:   l.Chunk,
				Score:   l.Score,
				Excerpt: l.Excerpt,
			})
		}
	}
	return v
}
