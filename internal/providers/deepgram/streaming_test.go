package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"safetour/internal/domain"
	"safetour/internal/ports"
)

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{})
	if p.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", p.cfg.APIBaseURL)
	}
	if p.cfg.Model != "nova-2" {
		t.Fatalf("unexpected model: %q", p.cfg.Model)
	}
	if p.cfg.KeepAliveInterval != 8*time.Second {
		t.Fatalf("unexpected keep-alive: %s", p.cfg.KeepAliveInterval)
	}
}

func TestProviderStartStreamingRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{APIKey: " "})
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestBuildListenURLDefaults(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2"}, ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"wss://api.deepgram.com/v1/listen", "encoding=linear16", "sample_rate=16000", "channels=1"} {
		if !strings.Contains(url, want) {
			t.Fatalf("expected %q in url: %s", want, url)
		}
	}
	if strings.Contains(url, "keywords=") || strings.Contains(url, "endpointing=") {
		t.Fatalf("unexpected optional params: %s", url)
	}
}

func TestBuildListenURLBoostsTriggerKeywords(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(
		Config{APIBaseURL: "http://localhost:8080/v1", Model: "m", Language: "en-US", Keywords: []string{"help", " ", "sos"}, KeywordBoost: 3, Endpointing: 300 * time.Millisecond},
		ports.StreamingConfig{InterimResults: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"ws://localhost:8080/v1/listen", "language=en-US", "interim_results=true", "keywords=help%3A3", "keywords=sos%3A3", "endpointing=300"} {
		if !strings.Contains(url, want) {
			t.Fatalf("expected %q in url: %s", want, url)
		}
	}
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := buildListenURL(Config{APIBaseURL: ":// bad"}, ports.StreamingConfig{})
	if err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	event, ok, err := decodeEvent([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":" please hel "}]}}`))
	if err != nil || !ok || event.Text != "please hel" || event.Kind != domain.TranscriptKindPartial {
		t.Fatalf("unexpected partial decode: %+v ok=%t err=%v", event, ok, err)
	}

	event, ok, _ = decodeEvent([]byte(`{"type":"Results","speech_final":true,"channel":{"alternatives":[{"transcript":"please help"}]}}`))
	if !ok || event.Kind != domain.TranscriptKindFinal || !event.IsSpeechFinal {
		t.Fatalf("unexpected final decode: %+v", event)
	}

	if _, ok, err := decodeEvent([]byte(`{"type":"Metadata"}`)); ok || err != nil {
		t.Fatalf("metadata should be skipped")
	}
	if _, ok, err := decodeEvent([]byte(`not json`)); ok || err != nil {
		t.Fatalf("garbage should be skipped")
	}
	if _, _, err := decodeEvent([]byte(`{"type":"Error","description":"bad auth"}`)); err == nil || err.Error() != "bad auth" {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestStreamingSessionSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &liveSession{}
	s.fail(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.failure() != nil {
		t.Fatalf("expected close error to be ignored")
	}

	s.fail(errors.New("first"))
	s.fail(errors.New("second"))
	if s.failure() == nil || s.failure().Error() != "first" {
		t.Fatalf("expected first error to win")
	}
}

func TestProviderStreamsInterimResultsAndKeepAlive(t *testing.T) {
	t.Parallel()

	received := make(chan string, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","channel":{"alternatives":[{"transcript":"send"}]}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"send sos"}]}}`))
		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.TextMessage {
				select {
				case received <- string(payload):
				default:
				}
				if strings.Contains(string(payload), "CloseStream") {
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}))
	defer server.Close()

	p := NewProvider(Config{APIKey: "secret", APIBaseURL: server.URL + "/v1", KeepAliveInterval: 20 * time.Millisecond})
	session, err := p.StartStreaming(context.Background(), ports.StreamingConfig{InterimResults: true})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	first := <-session.Events()
	second := <-session.Events()
	if first.Text != "send" || first.Kind != domain.TranscriptKindPartial {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if second.Text != "send sos" || second.Kind != domain.TranscriptKindFinal {
		t.Fatalf("unexpected second event: %+v", second)
	}

	select {
	case msg := <-received:
		if !strings.Contains(msg, "KeepAlive") {
			t.Fatalf("expected keep-alive, got %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for keep-alive")
	}

	if err := session.CloseSend(); err != nil {
		t.Fatalf("close send failed: %v", err)
	}
	if err := session.SendAudio([]byte("late")); err == nil {
		t.Fatalf("expected send after close to fail")
	}
	if err := session.Wait(); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}
