package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchDocumentRejectsUnsupportedMimeWithoutNetwork(t *testing.T) {
	t.Parallel()

	api := &fakeFileAPI{data: []byte("zip bytes")}
	f := NewFetcher(api, 0)

	_, err := f.FetchDocument(context.Background(), "doc-1", "application/zip")
	var unsupported *UnsupportedMimeTypeError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, "application/zip", unsupported.MimeType)
	require.Zero(t, api.networkCalls())
}

func TestFetchDocumentAllowList(t *testing.T) {
	t.Parallel()

	allowed := []string{"text/plain", "application/pdf", "image/png", "image/jpeg", "text/csv"}
	for _, mime := range allowed {
		api := &fakeFileAPI{data: []byte("content")}
		f := NewFetcher(api, 0)
		blob, err := f.FetchDocument(context.Background(), "doc-1", mime)
		require.NoError(t, err, mime)
		require.Equal(t, mime, blob.MimeType)
		require.Equal(t, []byte("content"), blob.Data)
	}
}

func TestFetchPairsBytesWithDeclaredMime(t *testing.T) {
	t.Parallel()

	api := &fakeFileAPI{data: []byte{0xff, 0xd8, 0xff}}
	f := NewFetcher(api, 0)

	blob, err := f.Fetch(context.Background(), "photo-1", "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", blob.MimeType)
	require.Equal(t, []byte{0xff, 0xd8, 0xff}, blob.Data)
	require.Equal(t, 1, api.getFileCalls)
	require.Equal(t, 1, api.downloadCalls)
}

func TestFetchResolveError(t *testing.T) {
	t.Parallel()

	api := &fakeFileAPI{getFileErr: errors.New("telegram http 400: file not found")}
	f := NewFetcher(api, 0)

	_, err := f.Fetch(context.Background(), "photo-1", "image/jpeg")
	require.Error(t, err)
	require.Zero(t, api.downloadCalls)
}

func TestFetchDownloadError(t *testing.T) {
	t.Parallel()

	api := &fakeFileAPI{downloadErr: errors.New("telegram download http 502: bad gateway")}
	f := NewFetcher(api, 0)

	_, err := f.Fetch(context.Background(), "voice-1", "audio/ogg")
	require.Error(t, err)
}
