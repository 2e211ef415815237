package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivelab/testimony/internal/config"
)

func TestSplitChunks(t *testing.T) {
	data := []byte("abcdefghij")

	assert.Len(t, splitChunks(data, 100), 1)
	assert.Len(t, splitChunks(data, 0), 1)

	chunks := splitChunks(data, 4)
	require.Len(t, chunks, 3)
	assert.Equal(t, []byte("abcd"), chunks[0])
	assert.Equal(t, []byte("efgh"), chunks[1])
	assert.Equal(t, []byte("ij"), chunks[2])
}

func TestChunkedTranscribeJoinsChunkResults(t *testing.T) {
	var uploads atomic.Int64
	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		n := uploads.Add(1)
		fmt.Fprintf(w, `{"text":"part %d"}`, n)
	}))
	defer uploadSrv.Close()

	mediaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer mediaSrv.Close()

	c := NewChunkedClient(config.TranscriptionConfig{
		ChunkUploadURL:  uploadSrv.URL,
		MaxPayloadBytes: 4,
		ChunkMaxRetries: 1,
	}, testLog())

	got, err := c.Transcribe(context.Background(), mediaSrv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "part 1 part 2 part 3", got)
	assert.Equal(t, int64(3), uploads.Load())
}

func TestChunkedTranscribeRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"text":"recovered"}`))
	}))
	defer uploadSrv.Close()

	mediaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer mediaSrv.Close()

	c := NewChunkedClient(config.TranscriptionConfig{
		ChunkUploadURL:  uploadSrv.URL,
		MaxPayloadBytes: 100,
		ChunkMaxRetries: 3,
	}, testLog())

	got, err := c.Transcribe(context.Background(), mediaSrv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int64(2), calls.Load())
}

func TestChunkedTranscribeAllChunksFailingIsEmptyResult(t *testing.T) {
	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Non-retryable so the retry budget is not exercised.
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer uploadSrv.Close()

	mediaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer mediaSrv.Close()

	c := NewChunkedClient(config.TranscriptionConfig{
		ChunkUploadURL:  uploadSrv.URL,
		MaxPayloadBytes: 100,
		ChunkMaxRetries: 1,
	}, testLog())

	got, err := c.Transcribe(context.Background(), mediaSrv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestChunkedTranscribeDownloadFailure(t *testing.T) {
	mediaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer mediaSrv.Close()

	c := NewChunkedClient(config.TranscriptionConfig{
		ChunkUploadURL:  "http://unused",
		MaxPayloadBytes: 100,
	}, testLog())

	_, err := c.Transcribe(context.Background(), mediaSrv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, 404, AsError(err).Status)
}
