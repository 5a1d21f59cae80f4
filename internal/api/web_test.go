package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
)

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) StateView {
	t.Helper()
	var v StateView
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	return v
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	if body.Error.Type != "invalid_request_error" {
		t.Errorf("error type = %q, want invalid_request_error", body.Error.Type)
	}
	return body.Error.Message
}

func uploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func chatRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestWebHealth(t *testing.T) {
	deps, _ := newTestDeps(t)
	rr := do(t, NewWeb(deps), httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %s", got)
	}
}

func TestWebPage(t *testing.T) {
	deps, _ := newTestDeps(t)
	rr := do(t, NewWeb(deps), httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), deps.Backend) {
		t.Error("page does not show the backend URL")
	}
}

func TestWebState_Initial(t *testing.T) {
	deps, _ := newTestDeps(t)
	rr := do(t, NewWeb(deps), httptest.NewRequest(http.MethodGet, "/api/state", nil))

	v := decodeState(t, rr)
	if v.Upload.Phase != "idle" || v.Query.Phase != "idle" {
		t.Errorf("phases = %s/%s, want idle/idle", v.Upload.Phase, v.Query.Phase)
	}
	if v.Query.Sources == nil || len(v.Query.Sources) != 0 {
		t.Errorf("sources = %#v, want empty list", v.Query.Sources)
	}
}

func TestWebUpload_Success(t *testing.T) {
	deps, fb := newTestDeps(t)
	h := NewWeb(deps)

	rr := do(t, h, uploadRequest(t, "policy.pdf", "application/pdf", []byte("%PDF-1.4 body")))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}
	if v := decodeState(t, rr); v.Upload.Status != "Uploading..." && v.Upload.Status != "Uploaded" {
		t.Errorf("accepted status = %q", v.Upload.Status)
	}

	h.Wait()

	v := decodeState(t, do(t, h, httptest.NewRequest(http.MethodGet, "/api/state", nil)))
	if v.Upload.Phase != "succeeded" || v.Upload.Status != "Uploaded" {
		t.Fatalf("upload = %+v, want succeeded", v.Upload)
	}
	if v.Upload.Result == nil || v.Upload.Result.DocumentID != "d1" || v.Upload.Result.ChunksCount != 7 {
		t.Errorf("result = %+v, want d1/7", v.Upload.Result)
	}
	if v.Upload.FileName != "policy.pdf" {
		t.Errorf("file name = %q", v.Upload.FileName)
	}
	if uploads, _ := fb.seen(); len(uploads) != 1 || uploads[0] != "policy.pdf|application/pdf" {
		t.Errorf("backend saw uploads %v", uploads)
	}
}

func TestWebUpload_NoFile(t *testing.T) {
	deps, fb := newTestDeps(t)
	h := NewWeb(deps)

	rr := do(t, h, httptest.NewRequest(http.MethodPost, "/api/upload", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if msg := decodeError(t, rr); msg != "choose a file first" {
		t.Errorf("message = %q", msg)
	}
	if fb.count() != 0 {
		t.Errorf("backend received %d requests, want 0", fb.count())
	}
	if got := deps.Uploads.State().Phase.String(); got != "idle" {
		t.Errorf("phase = %s, want idle", got)
	}
}

func TestWebUpload_ReusesSelection(t *testing.T) {
	deps, fb := newTestDeps(t)
	h := NewWeb(deps)

	do(t, h, uploadRequest(t, "policy.pdf", "application/pdf", []byte("%PDF-1.4 body")))
	h.Wait()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := do(t, h, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}
	h.Wait()

	if uploads, _ := fb.seen(); len(uploads) != 2 {
		t.Fatalf("backend saw %d uploads, want 2", len(uploads))
	}
	if st := deps.Uploads.State(); st.Seq != 2 || st.Result.DocumentID != "d1" {
		t.Errorf("state = %+v, want second upload displayed", st)
	}
}

func TestWebUpload_BackendError(t *testing.T) {
	deps, fb := newTestDeps(t)
	fb.fail("file too large")
	h := NewWeb(deps)

	do(t, h, uploadRequest(t, "big.pdf", "application/pdf", []byte("%PDF")))
	h.Wait()

	v := Snapshot(deps)
	if v.Upload.Phase != "failed" || v.Upload.Status != "Error: file too large" {
		t.Errorf("upload = %+v", v.Upload)
	}
	if v.Upload.Error != "file too large" {
		t.Errorf("error = %q", v.Upload.Error)
	}
}

func TestWebChat_EmptyQuestion(t *testing.T) {
	deps, fb := newTestDeps(t)
	h := NewWeb(deps)

	rr := do(t, h, chatRequest(`{"message":""}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if msg := decodeError(t, rr); msg != "type a question first" {
		t.Errorf("message = %q", msg)
	}
	if fb.count() != 0 {
		t.Errorf("backend received %d requests, want 0", fb.count())
	}
}

func TestWebChat_InvalidBody(t *testing.T) {
	deps, _ := newTestDeps(t)
	rr := do(t, NewWeb(deps), chatRequest(`not json`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if msg := decodeError(t, rr); !strings.Contains(msg, "invalid request body") {
		t.Errorf("message = %q", msg)
	}
}

func TestWebChat_AnswerWithSources(t *testing.T) {
	deps, fb := newTestDeps(t)
	h := NewWeb(deps)

	rr := do(t, h, chatRequest(`{"message":"  What is the limit?  "}`))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}
	h.Wait()

	if _, questions := fb.seen(); len(questions) != 1 || questions[0] != "  What is the limit?  " {
		t.Errorf("backend saw questions %q, want verbatim text", questions)
	}

	v := Snapshot(deps)
	if v.Query.Phase != "succeeded" || v.Query.Answer != "Ten percent." {
		t.Fatalf("query = %+v", v.Query)
	}
	if len(v.Query.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(v.Query.Sources))
	}
	if got := v.Query.Sources[0].Heading; got != "policy.pdf — chunk 4 (score: 0.912)" {
		t.Errorf("first heading = %q", got)
	}
	if got := v.Query.Sources[1].Heading; got != "Unknown — chunk 2" {
		t.Errorf("second heading = %q", got)
	}
}

func TestWebChat_BackendError(t *testing.T) {
	deps, fb := newTestDeps(t)
	fb.fail("index unavailable")
	h := NewWeb(deps)

	do(t, h, chatRequest(`{"message":"hi"}`))
	h.Wait()

	v := Snapshot(deps)
	if v.Query.Phase != "failed" || v.Query.Status != "Error: index unavailable" {
		t.Errorf("query = %+v", v.Query)
	}
}

func TestWebUpload_FailedReuploadKeepsResult(t *testing.T) {
	deps, fb := newTestDeps(t)
	h := NewWeb(deps)

	do(t, h, uploadRequest(t, "policy.pdf", "application/pdf", []byte("%PDF-1.4 body")))
	h.Wait()

	fb.fail("Only PDF files are allowed")
	do(t, h, uploadRequest(t, "notes.txt", "text/plain", []byte("plain")))
	h.Wait()

	v := Snapshot(deps)
	if v.Upload.Phase != "failed" || v.Upload.Error != "Only PDF files are allowed" {
		t.Fatalf("upload = %+v, want failed", v.Upload)
	}
	if v.Upload.FileName != "notes.txt" {
		t.Errorf("file name = %q, want the failed attempt's file", v.Upload.FileName)
	}
	if v.Upload.Result == nil || v.Upload.Result.DocumentID != "d1" || v.Upload.ResultFile != "policy.pdf" {
		t.Errorf("result = %+v from %q, want d1 from policy.pdf", v.Upload.Result, v.Upload.ResultFile)
	}
}
