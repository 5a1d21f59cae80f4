package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/docchat/internal/render"
	"github.com/kalambet/docchat/internal/session"
)

const stateURI = "session://state"

// NewMCPServer creates an MCP server exposing the upload and question
// actions as tools and the session snapshot as a resource. Tool calls run
// synchronously; each makes at most one backend request.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"docchat",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("docchat: upload a PDF to the ingestion service, then ask questions answered from its content with cited passages."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("upload_document",
			mcp.WithDescription("Upload a local document to the ingestion service. Omit path to upload the previously selected file again."),
			mcp.WithString("path", mcp.Description("Path of the file to upload")),
		),
		mcpUploadDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_question",
			mcp.WithDescription("Ask a question about the uploaded document. Returns the answer followed by the cited source passages."),
			mcp.WithString("question", mcp.Description("The question, sent verbatim"), mcp.Required()),
		),
		mcpAskQuestion(deps),
	)

	s.AddResource(
		mcp.NewResource(
			stateURI,
			"Session State",
			mcp.WithResourceDescription("Current upload and question state as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceState(deps),
	)

	return s
}

func mcpUploadDocument(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if path := strings.TrimSpace(req.GetString("path", "")); path != "" {
			f, err := session.OpenPath(path)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			deps.Uploads.SelectFile(f)
		}

		st, err := deps.Uploads.Submit(ctx)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if st.Phase == session.Failed {
			return mcpError(st.Status()), nil
		}
		if st.Phase != session.Succeeded || st.Result == nil {
			// A newer upload from another surface took the display.
			return mcpText(st.Status()), nil
		}

		return mcpText(fmt.Sprintf("%s: %s (document %s, %d chunks)",
			st.FileName, st.Status(), st.Result.DocumentID, st.Result.ChunksCount)), nil
	}
}

func mcpAskQuestion(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		deps.Queries.SetQuestion(req.GetString("question", ""))

		st, err := deps.Queries.Submit(ctx)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if st.Phase == session.Failed {
			return mcpError(st.Status()), nil
		}
		if st.Phase != session.Succeeded || st.Exchange == nil {
			// A newer question from another surface took the display.
			return mcpText(st.Status()), nil
		}

		var b strings.Builder
		b.WriteString(st.Exchange.Answer)
		if lines := render.Citations(st.Exchange.Sources, deps.Render); len(lines) > 0 {
			b.WriteString("\n\nSources:\n")
			b.WriteString(render.Text(lines))
		}
		return mcpText(b.String()), nil
	}
}

func mcpResourceState(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(Snapshot(deps))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal state: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
