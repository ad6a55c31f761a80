package listening

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"safetour/internal/domain"
	"safetour/internal/ports"
)

// MicrophoneConfig controls capture and streaming settings.
type MicrophoneConfig struct {
	Audio     ports.AudioConfig
	Streaming ports.StreamingConfig
	ChunkSize int
}

// MicrophoneSource captures the microphone and streams it to a live
// transcription provider with interim results.
type MicrophoneSource struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      MicrophoneConfig
	logger   *zap.Logger
}

func NewMicrophoneSource(audio ports.AudioCapture, provider ports.TranscriptionProvider, cfg MicrophoneConfig, logger *zap.Logger) *MicrophoneSource {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	cfg.Streaming.InterimResults = true
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MicrophoneSource{audio: audio, provider: provider, cfg: cfg, logger: logger.Named("microphone")}
}

// Start opens the provider stream first, then the microphone.
func (m *MicrophoneSource) Start(ctx context.Context) (ports.TranscriptStream, error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := m.provider.StartStreaming(sessionCtx, m.cfg.Streaming)
	if err != nil {
		cancel()
		return nil, err
	}

	audioSession, err := m.audio.Start(sessionCtx, m.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return nil, err
	}

	ms := &microphoneStream{
		cancel:    cancel,
		audio:     audioSession,
		stream:    stream,
		events:    make(chan domain.TranscriptEvent, 64),
		stopped:   make(chan struct{}),
		audioDone: make(chan struct{}),
		logger:    m.logger,
	}

	go pumpAudioChunks(audioSession, stream, m.cfg.ChunkSize, ms.setErr, ms.audioDone)
	go ms.relay()

	m.logger.Debug("microphone stream started")
	return ms, nil
}

type microphoneStream struct {
	cancel func()
	audio  ports.AudioSession
	stream ports.StreamingSession
	logger *zap.Logger

	events    chan domain.TranscriptEvent
	stopped   chan struct{}
	audioDone chan struct{}
	stopOnce  sync.Once

	errMu sync.Mutex
	err   error
}

func (s *microphoneStream) Events() <-chan domain.TranscriptEvent {
	return s.events
}

// Stop tears the session down without waiting for in-flight events.
func (s *microphoneStream) Stop() error {
	var stopErr error
	s.stopOnce.Do(func() {
		close(s.stopped)
		s.cancel()
		stopErr = s.audio.Stop()
		_ = s.stream.Close()
	})
	return stopErr
}

func (s *microphoneStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *microphoneStream) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *microphoneStream) relay() {
	defer close(s.events)

	for event := range s.stream.Events() {
		if strings.TrimSpace(event.Text) == "" {
			continue
		}
		select {
		case s.events <- event:
		case <-s.stopped:
		}
	}

	if err := waitForStream(s.stream, 4*time.Second); err != nil {
		s.setErr(err)
	}
	if err := s.audio.Stop(); err != nil {
		s.logger.Debug("audio capture stop reported error", zap.Error(err))
	}
	<-s.audioDone
}
