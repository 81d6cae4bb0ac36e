package bot

import (
	"context"
	"fmt"

	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/gemini"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/telegram"
)

// FileAPI is the slice of the Telegram client the fetcher needs.
type FileAPI interface {
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	DownloadFile(ctx context.Context, filePath string, maxBytes int64) ([]byte, error)
}

// UnsupportedMimeTypeError rejects a document before any network traffic.
type UnsupportedMimeTypeError struct {
	MimeType string
}

func (e *UnsupportedMimeTypeError) Error() string {
	return fmt.Sprintf("unsupported mime type: %s", e.MimeType)
}

var documentMimeAllowList = map[string]bool{
	"text/plain":      true,
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"text/csv":        true,
}

// Fetcher downloads Telegram file attachments into blobs the model can
// consume inline.
type Fetcher struct {
	api      FileAPI
	maxBytes int64
}

func NewFetcher(api FileAPI, maxBytes int64) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = 20 * 1024 * 1024
	}
	return &Fetcher{api: api, maxBytes: maxBytes}
}

// Fetch resolves fileID to a download path, retrieves the bytes and pairs
// them with the declared mime type.
func (f *Fetcher) Fetch(ctx context.Context, fileID, mimeType string) (gemini.Blob, error) {
	file, err := f.api.GetFile(ctx, fileID)
	if err != nil {
		return gemini.Blob{}, fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	data, err := f.api.DownloadFile(ctx, file.FilePath, f.maxBytes)
	if err != nil {
		return gemini.Blob{}, fmt.Errorf("download file %s: %w", fileID, err)
	}
	return gemini.Blob{MimeType: mimeType, Data: data}, nil
}

// FetchDocument is Fetch with the document allow-list applied up front, so
// an unsupported type never costs a download.
func (f *Fetcher) FetchDocument(ctx context.Context, fileID, mimeType string) (gemini.Blob, error) {
	if !documentMimeAllowList[mimeType] {
		return gemini.Blob{}, &UnsupportedMimeTypeError{MimeType: mimeType}
	}
	return f.Fetch(ctx, fileID, mimeType)
}
