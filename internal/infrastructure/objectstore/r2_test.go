package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-ai-api/internal/config"
)

func TestNewR2Store_Disabled(t *testing.T) {
	store, err := NewR2Store(&config.R2Config{Bucket: "b"})
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestNormalizeObjectKey(t *testing.T) {
	tests := map[string]string{
		"avatars/a.png":      "avatars/a.png",
		"/avatars//a.png":    "avatars/a.png",
		`covers\2024\b.png`:  "covers/2024/b.png",
		"  ":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeObjectKey(in), in)
	}
}

func TestR2Store_Save(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotBody  []byte
		gotCType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotCType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	store, err := NewR2Store(&config.R2Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "media",
		PublicURL:       "https://cdn.example.com/",
	})
	require.NoError(t, err)
	require.NotNil(t, store)

	url, err := store.Save(context.Background(), "/avatars/2024/01/02/a b.png", []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/avatars/2024/01/02/a%20b.png", url)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/media/avatars/2024/01/02/a b.png", gotPath)
	assert.Equal(t, "image/png", gotCType)
	assert.Contains(t, string(gotBody), "img")
}

func TestR2Store_ObjectURLWithoutPublicURL(t *testing.T) {
	store := &R2Store{bucket: "media", endpoint: "https://acc.r2.cloudflarestorage.com"}
	assert.Equal(t, "https://acc.r2.cloudflarestorage.com/media/covers/x.png", store.objectURL("covers/x.png"))
}
