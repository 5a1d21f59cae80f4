// Package backend talks to the document ingestion and chat service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	uploadPath = "/upload"
	chatPath   = "/chat"
	healthPath = "/"

	fileField = "file"

	// RequestIDHeader carries a per-request id so client and backend logs line up.
	RequestIDHeader = "X-Request-ID"
)

// Client issues single-attempt requests against the backend. It never
// retries and adds no timeout beyond what the http.Client carries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return NewClientWithHTTPClient(baseURL, &http.Client{})
}

// NewClientWithHTTPClient creates a client using hc for transport (for testing).
func NewClientWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

// BaseURL returns the backend address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends body as the multipart field "file" to POST /upload.
func (c *Client) Upload(ctx context.Context, name, mediaType string, body io.Reader) (*UploadResponse, error) {
	const op = "upload"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, quoteEscaper.Replace(name)))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	header.Set("Content-Type", mediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out UploadResponse
	if err := c.do(op, req, &out); err != nil {
		return nil, err
	}
	if out.DocumentID == nil {
		return nil, &TransportError{Op: op, Err: errors.New("malformed response: missing document_id")}
	}
	if out.ChunksCount == nil {
		return nil, &TransportError{Op: op, Err: errors.New("malformed response: missing chunks_count")}
	}
	if *out.ChunksCount < 0 {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("malformed response: negative chunks_count %d", *out.ChunksCount)}
	}
	return &out, nil
}

// Chat sends message verbatim to POST /chat.
func (c *Client) Chat(ctx context.Context, message string) (*ChatResponse, error) {
	const op = "chat"

	data, err := json.Marshal(ChatRequest{Message: message})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out ChatResponse
	if err := c.do(op, req, &out); err != nil {
		return nil, err
	}
	if out.Response == nil {
		return nil, &TransportError{Op: op, Err: errors.New("malformed response: missing response")}
	}
	if out.Sources == nil {
		out.Sources = []Source{}
	}
	return &out, nil
}

// Health calls GET / on the backend.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var out Health
	if err := c.do("health", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do executes req once and decodes a JSON object body into v.
func (c *Client) do(op string, req *http.Request, v any) error {
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("backend request failed", "op", op, "request_id", requestID, "error", err)
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	slog.Debug("backend request",
		"op", op,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("reading response body: %w", err)}
	}

	var fields map[string]json.RawMessage
	decodeErr := json.Unmarshal(body, &fields)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: failureMessage(resp.StatusCode, body, fields)}
	}
	if decodeErr != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", decodeErr)}
	}
	if msg, isErr := bodyError(resp.StatusCode, body, fields); isErr {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
