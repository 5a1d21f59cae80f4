package session

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/kalambet/docchat/internal/backend"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, name, mediaType string, body io.Reader) (*backend.UploadResponse, error) {
	data, _ := io.ReadAll(body)
	args := m.Called(ctx, name, mediaType, string(data))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.UploadResponse), args.Error(1)
}

type MockAsker struct {
	mock.Mock
}

func (m *MockAsker) Chat(ctx context.Context, message string) (*backend.ChatResponse, error) {
	args := m.Called(ctx, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.ChatResponse), args.Error(1)
}

func ptr[T any](v T) *T { return &v }

func uploadResponse(id string, chunks int) *backend.UploadResponse {
	return &backend.UploadResponse{DocumentID: ptr(id), ChunksCount: ptr(chunks)}
}

func pdfFile(name, content string) SelectedFile {
	return FromBytes(name, "application/pdf", []byte(content))
}
