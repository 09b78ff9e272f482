package matching

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaceClientCompare(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/compare", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("source")
		require.NoError(t, err)
		_, _, err = r.FormFile("target")
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "match": true})
	}))
	defer srv.Close()

	client := NewFaceClient(srv.URL, 2*time.Second)
	match, err := client.Compare(context.Background(), []byte("a"), []byte("b"))
	require.NoError(t, err)
	assert.True(t, match)
}

func TestFaceClientCompareServiceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "model not loaded"})
	}))
	defer srv.Close()

	client := NewFaceClient(srv.URL, 2*time.Second)
	_, err := client.Compare(context.Background(), []byte("a"), []byte("b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestFaceClientCompareTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "match": true})
	}))
	defer srv.Close()

	client := NewFaceClient(srv.URL, 50*time.Millisecond)
	_, err := client.Compare(context.Background(), []byte("a"), []byte("b"))
	assert.Error(t, err)
}

func TestFaceClientEmbedNoFace(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "faces": 0})
	}))
	defer srv.Close()

	client := NewFaceClient(srv.URL, 2*time.Second)
	_, err := client.Embed(context.Background(), []byte("a"))
	assert.ErrorIs(t, err, ErrNoFace)
}

func TestFaceClientUnconfigured(t *testing.T) {
	t.Parallel()

	var client *FaceClient
	_, err := client.Embed(context.Background(), []byte("a"))
	assert.ErrorIs(t, err, ErrFaceServiceUnavailable)
	_, err = client.Compare(context.Background(), []byte("a"), []byte("b"))
	assert.ErrorIs(t, err, ErrFaceServiceUnavailable)
	assert.ErrorIs(t, client.Health(context.Background()), ErrFaceServiceUnavailable)
}

func TestFaceClientHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewFaceClient(srv.URL, 2*time.Second)
	assert.NoError(t, client.Health(context.Background()))

	srv.Close()
	assert.Error(t, client.Health(context.Background()))
}
