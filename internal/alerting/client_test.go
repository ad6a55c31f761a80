package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetour/internal/domain"
)

func testPayload() domain.EmergencyAlertPayload {
	return domain.EmergencyAlertPayload{
		AlertID:     "a-1",
		TriggerWord: "help",
		Contacts:    []domain.Contact{{ID: 1, Name: "Ana", Phone: "1"}},
		SilentMode:  true,
		TriggeredAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSubmitPostsPayloadWithHeaders(t *testing.T) {
	var got domain.EmergencyAlertPayload
	var rawBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "a-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		require.NoError(t, json.Unmarshal(body, &rawBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"alertId":"srv-9","message":"responders notified"}`))
	}))
	defer server.Close()

	s := NewHTTPSubmitter(Config{Endpoint: server.URL, Token: "secret"}, nil)
	result, err := s.Submit(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, "srv-9", result.AlertID)
	assert.Equal(t, "responders notified", result.Message)

	assert.Equal(t, "help", got.TriggerWord)
	assert.True(t, got.SilentMode)
	assert.Len(t, got.Contacts, 1)
	loc, present := rawBody["location"]
	assert.True(t, present, "location is always present")
	assert.Nil(t, loc)
	assert.Nil(t, rawBody["userDetails"])
}

func TestSubmitEmptyBodyIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	result, err := NewHTTPSubmitter(Config{Endpoint: server.URL}, nil).Submit(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, "a-1", result.AlertID)
}

func TestSubmitFailuresAreNotRetried(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"server error":  {status: http.StatusServiceUnavailable, body: "maintenance", want: "status 503: maintenance"},
		"success false": {status: http.StatusOK, body: `{"success":false,"error":"quota exceeded"}`, want: "quota exceeded"},
		"bad request":   {status: http.StatusBadRequest, body: "", want: "empty body"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewHTTPSubmitter(Config{Endpoint: server.URL}, nil).Submit(context.Background(), testPayload())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRejected))
			assert.Contains(t, err.Error(), tc.want)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestSubmitWithoutEndpoint(t *testing.T) {
	_, err := NewHTTPSubmitter(Config{}, nil).Submit(context.Background(), testPayload())
	assert.ErrorIs(t, err, ErrEndpointNotConfigured)
}

func TestSubmitTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := NewHTTPSubmitter(Config{Endpoint: server.URL, Timeout: 30 * time.Millisecond}, nil).Submit(context.Background(), testPayload())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "send alert"))
}

func TestSnippetTruncates(t *testing.T) {
	long := strings.Repeat("x", 250)
	assert.Equal(t, strings.Repeat("x", 200)+"...", snippet([]byte(long)))
	assert.Equal(t, "empty body", snippet([]byte("  ")))
}
