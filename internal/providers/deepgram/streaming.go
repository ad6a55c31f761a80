package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"safetour/internal/domain"
	"safetour/internal/ports"
)

var (
	ErrMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not configured")
	errSendClosed    = errors.New("audio stream is already closed")
	errSessionClosed = errors.New("deepgram session closed")
)

// Config controls Deepgram live transcription.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	// Keywords are boosted so short trigger words survive recognition.
	Keywords          []string
	KeywordBoost      int
	Endpointing       time.Duration
	KeepAliveInterval time.Duration
}

// Provider implements ports.TranscriptionProvider for Deepgram.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.KeywordBoost <= 0 {
		cfg.KeywordBoost = 2
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = 8 * time.Second
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("connect to Deepgram websocket: %w", err)
	}

	session := newLiveSession(conn, p.cfg.KeepAliveInterval)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()
	return session, nil
}

// liveSession keeps one websocket open for as long as the session is
// armed. A keep-alive frame is written whenever audio has been idle, which
// stops Deepgram from closing the socket during silence.
type liveSession struct {
	conn *websocket.Conn

	events chan domain.TranscriptEvent
	audio  chan []byte
	done   chan struct{}

	keepAlive time.Duration
	wg        sync.WaitGroup

	failMu  sync.Mutex
	failErr error

	sendDone      chan struct{}
	closeSendOnce sync.Once
	closeOnce     sync.Once
}

func newLiveSession(conn *websocket.Conn, keepAlive time.Duration) *liveSession {
	s := &liveSession{
		conn:      conn,
		events:    make(chan domain.TranscriptEvent, 64),
		audio:     make(chan []byte, 32),
		done:      make(chan struct{}),
		sendDone:  make(chan struct{}),
		keepAlive: keepAlive,
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()
	return s
}

func (s *liveSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if err := s.closedErr(); err != nil {
		return err
	}

	select {
	case s.audio <- append([]byte(nil), chunk...):
		return nil
	case <-s.sendDone:
		return errSendClosed
	case <-s.done:
		return s.closedErr()
	}
}

// closedErr reports why audio can no longer be sent, or nil while it can.
func (s *liveSession) closedErr() error {
	select {
	case <-s.sendDone:
		return errSendClosed
	case <-s.done:
		if err := s.failure(); err != nil {
			return err
		}
		return errSessionClosed
	default:
		return nil
	}
}

func (s *liveSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		close(s.sendDone)
	})
	return nil
}

func (s *liveSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *liveSession) Wait() error {
	<-s.done
	return s.failure()
}

func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.failure()
}

func (s *liveSession) failure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failErr
}

func (s *liveSession) fail(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.failMu.Lock()
	defer s.failMu.Unlock()
	if s.failErr == nil {
		s.failErr = err
	}
}

func (s *liveSession) writeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-s.sendDone:
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
				s.fail(fmt.Errorf("close stream: %w", err))
			}
			return
		case chunk := <-s.audio:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				s.fail(fmt.Errorf("send audio: %w", err))
				_ = s.conn.Close()
				return
			}
			ticker.Reset(s.keepAlive)
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`)); err != nil {
				s.fail(fmt.Errorf("send keep-alive: %w", err))
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *liveSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(fmt.Errorf("read provider event: %w", err))
			_ = s.CloseSend()
			return
		}

		event, ok, err := decodeEvent(payload)
		switch {
		case err != nil:
			s.fail(err)
			_ = s.CloseSend()
			return
		case ok:
			s.emit(event)
		}
	}
}

// emit drops events the consumer is too slow for; the next interim result
// carries the same text.
func (s *liveSession) emit(event domain.TranscriptEvent) {
	select {
	case s.events <- event:
	default:
	}
}

// resultFrame is the subset of a live transcription message the sentinel
// reads. Metadata and utterance-end frames decode with no alternatives.
type resultFrame struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (f resultFrame) transcript() string {
	if len(f.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(f.Channel.Alternatives[0].Transcript)
}

func (f resultFrame) failure() error {
	if !strings.EqualFold(f.Type, "Error") {
		return nil
	}
	for _, candidate := range []string{f.Message, f.Description} {
		if text := strings.TrimSpace(candidate); text != "" {
			return errors.New(text)
		}
	}
	return errors.New("deepgram returned an unknown error")
}

// decodeEvent turns one provider frame into a transcript event. Frames that
// carry no text report ok=false; unparseable frames are skipped.
func decodeEvent(payload []byte) (domain.TranscriptEvent, bool, error) {
	var frame resultFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return domain.TranscriptEvent{}, false, nil
	}
	if err := frame.failure(); err != nil {
		return domain.TranscriptEvent{}, false, err
	}

	text := frame.transcript()
	if text == "" {
		return domain.TranscriptEvent{}, false, nil
	}
	kind := domain.TranscriptKindPartial
	if frame.IsFinal || frame.SpeechFinal {
		kind = domain.TranscriptKindFinal
	}
	return domain.TranscriptEvent{Kind: kind, Text: text, IsSpeechFinal: frame.SpeechFinal}, true, nil
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(providerCfg.APIBaseURL), "/")
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}
	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}
	switch listenURL.Scheme {
	case "https":
		listenURL.Scheme = "wss"
	case "http":
		listenURL.Scheme = "ws"
	}
	listenURL.RawQuery = listenParams(providerCfg, streamCfg).Encode()
	return listenURL.String(), nil
}

func listenParams(providerCfg Config, streamCfg ports.StreamingConfig) url.Values {
	params := url.Values{}
	params.Set("model", providerCfg.Model)
	params.Set("encoding", valueOr(streamCfg.Encoding, "linear16"))
	params.Set("sample_rate", strconv.Itoa(positiveOr(streamCfg.SampleRate, 16000)))
	params.Set("channels", strconv.Itoa(positiveOr(streamCfg.Channels, 1)))
	params.Set("interim_results", strconv.FormatBool(streamCfg.InterimResults))
	params.Set("smart_format", strconv.FormatBool(providerCfg.SmartFormat))
	if providerCfg.Language != "" {
		params.Set("language", providerCfg.Language)
	}
	if providerCfg.Endpointing > 0 {
		params.Set("endpointing", strconv.FormatInt(providerCfg.Endpointing.Milliseconds(), 10))
	}

	boost := strconv.Itoa(positiveOr(providerCfg.KeywordBoost, 2))
	for _, keyword := range providerCfg.Keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			params.Add("keywords", keyword+":"+boost)
		}
	}
	return params
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
