package avatar_fetcher

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallest valid PNG signature plus IHDR chunk header is enough for type detection
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/avatar.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngBytes)
	})
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello there"))
	})
	mux.HandleFunc("/missing.png", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func TestFetchBase64(t *testing.T) {
	server := newServer(t)

	fetcher, err := New(Config{Timeout: 5 * time.Second})
	require.NoError(t, err)

	tests := []struct {
		name    string
		url     string
		want    string
		wantErr error
	}{
		{name: "png", url: server.URL + "/avatar.png", want: base64.StdEncoding.EncodeToString(pngBytes)},
		{name: "not an image", url: server.URL + "/notes.txt", wantErr: ErrNotAnImage},
		{name: "http error", url: server.URL + "/missing.png", wantErr: ErrFetchFailed},
		{name: "empty url", url: "  ", wantErr: ErrMissingAvatar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fetcher.FetchBase64(context.Background(), tt.url)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchBase64_TooLarge(t *testing.T) {
	server := newServer(t)

	fetcher, err := New(Config{Timeout: 5 * time.Second, MaxBytes: 8})
	require.NoError(t, err)

	_, err = fetcher.FetchBase64(context.Background(), server.URL+"/avatar.png")
	assert.ErrorIs(t, err, ErrAvatarTooLarge)
}

func TestFetchBase64_Canceled(t *testing.T) {
	server := newServer(t)

	fetcher, err := New(Config{Timeout: 5 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = fetcher.FetchBase64(ctx, server.URL+"/avatar.png")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_MissingTimeout(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
