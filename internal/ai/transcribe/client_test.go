package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivelab/testimony/internal/config"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func newTestClient(serverURL string) *HTTPClient {
	return NewHTTPClient(config.TranscriptionConfig{
		URL:            serverURL,
		Language:       "en",
		BaseTimeoutSec: 60,
	}, testLog())
}

func TestTranscribeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcribe", r.URL.Path)

		var req struct {
			AudioURL string `json:"audioUrl"`
			Language string `json:"language"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://media.example/a.mp3", req.AudioURL)
		assert.Equal(t, "en", req.Language)

		w.Write([]byte(`{"text":"we crossed the river at night","language":"en","duration":12.5}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Transcribe(context.Background(), "https://media.example/a.mp3", nil)
	require.NoError(t, err)
	assert.Equal(t, "we crossed the river at night", got)
}

func TestTranscribeAlternateResponseShapes(t *testing.T) {
	cases := map[string]string{
		"transcript field": `{"transcript":"spoken words"}`,
		"data field":       `{"data":"spoken words"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			got, err := newTestClient(srv.URL).Transcribe(context.Background(), "u", nil)
			require.NoError(t, err)
			assert.Equal(t, "spoken words", got)
		})
	}
}

func TestTranscribeEmptyTranscriptIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"   "}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Transcribe(context.Background(), "u", nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestTranscribeClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status    int
		body      string
		code      ErrorCode
		retryable bool
	}{
		{http.StatusServiceUnavailable, "busy", CodeServiceUnavailable, true},
		{http.StatusBadGateway, "", CodeGatewayTimeout, true},
		{http.StatusGatewayTimeout, "", CodeGatewayTimeout, true},
		{http.StatusUnprocessableEntity, "bad media", CodeInvalidAudio, false},
		{http.StatusBadRequest, "", CodeInvalidAudio, false},
		{http.StatusInternalServerError, "invalid format", CodeInvalidAudio, false},
		{http.StatusInternalServerError, "boom", CodeServiceUnavailable, true},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))

		_, err := newTestClient(srv.URL).Transcribe(context.Background(), "u", nil)
		srv.Close()

		require.Error(t, err)
		terr := AsError(err)
		assert.Equal(t, tc.code, terr.Code, "status %d body %q", tc.status, tc.body)
		assert.Equal(t, tc.retryable, terr.Retryable())
		assert.Equal(t, tc.status, terr.Status)
	}
}

func TestTranscribeProviderErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Transcribe(context.Background(), "u", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestTranscribeNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(nil))
	srv.Close() // immediately, so the connection is refused

	_, err := newTestClient(srv.URL).Transcribe(context.Background(), "u", nil)
	require.Error(t, err)

	terr := AsError(err)
	assert.Equal(t, CodeNetwork, terr.Code)
	assert.True(t, terr.Retryable())
}

func TestTimeoutScalesWithDuration(t *testing.T) {
	c := newTestClient("http://localhost")

	// Unknown duration gets the flat fallback.
	assert.Equal(t, 5*time.Minute, c.timeoutFor(nil))

	// Short media is still granted the base timeout at minimum.
	short := 10.0
	assert.Equal(t, 2*time.Duration(short)*time.Second+120*time.Second, c.timeoutFor(&short))

	// Long media is clamped to the ceiling.
	long := 7200.0
	assert.Equal(t, 20*time.Minute, c.timeoutFor(&long))
}
