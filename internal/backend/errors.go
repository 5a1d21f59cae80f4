package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is returned when the backend answered but signalled a failure,
// either with a non-2xx status or with an error-shaped body.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// TransportError is returned when no usable response could be obtained:
// the request failed, the body could not be read, or it was not the JSON
// shape the endpoint promises.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Message returns the text a user should see for err: the backend's own
// detail for application errors, the underlying cause for transport errors.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr.Err.Error()
	}
	return err.Error()
}

// failureMessage derives the error text from a failed response body: the
// "detail" string when present, otherwise the whole body serialized.
func failureMessage(status int, body []byte, fields map[string]json.RawMessage) string {
	if detail, ok := stringField(fields, "detail"); ok {
		return detail
	}
	return serializeBody(status, body)
}

// bodyError reports whether a 2xx body is nevertheless error-shaped.
func bodyError(status int, body []byte, fields map[string]json.RawMessage) (string, bool) {
	if detail, ok := stringField(fields, "detail"); ok {
		return detail, true
	}
	if raw, ok := fields["detail"]; ok && !isBlank(raw) {
		return serializeBody(status, body), true
	}
	raw, ok := fields["error"]
	if !ok || isBlank(raw) {
		return "", false
	}
	if msg, ok := stringField(fields, "error"); ok {
		return msg, true
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
		return nested.Message, true
	}
	return serializeBody(status, body), true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// isBlank reports whether a field carries no error: null, false, an empty
// string, or an empty object or array.
func isBlank(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return isNull(raw)
	}
	switch v := v.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}

func serializeBody(status int, body []byte) string {
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err == nil && compact.Len() > 0 {
		return compact.String()
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}
