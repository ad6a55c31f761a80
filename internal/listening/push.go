package listening

import (
	"context"
	"errors"
	"strings"
	"sync"

	"safetour/internal/domain"
	"safetour/internal/ports"
)

var (
	ErrNotListening = errors.New("no active listening session")
	ErrBacklogFull  = errors.New("transcript backlog full")
)

// PushSource is a transcript source fed by clients that run speech
// recognition themselves, such as a browser or the desktop shell.
type PushSource struct {
	buffer int

	mu      sync.Mutex
	current *pushStream
}

func NewPushSource(buffer int) *PushSource {
	if buffer <= 0 {
		buffer = 32
	}
	return &PushSource{buffer: buffer}
}

// Start opens a new stream, ending any previous one.
func (p *PushSource) Start(ctx context.Context) (ports.TranscriptStream, error) {
	stream := &pushStream{
		events: make(chan domain.TranscriptEvent, p.buffer),
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	previous := p.current
	p.current = stream
	p.mu.Unlock()

	if previous != nil {
		_ = previous.Stop()
	}

	go func() {
		select {
		case <-ctx.Done():
			stream.end(ctx.Err())
		case <-stream.done:
		}
	}()
	return stream, nil
}

// Push delivers one recognition result to the active stream.
func (p *PushSource) Push(text string, isFinal bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	p.mu.Lock()
	stream := p.current
	p.mu.Unlock()
	if stream == nil {
		return ErrNotListening
	}

	kind := domain.TranscriptKindPartial
	if isFinal {
		kind = domain.TranscriptKindFinal
	}
	return stream.deliver(domain.TranscriptEvent{Kind: kind, Text: text, IsSpeechFinal: isFinal})
}

// Listening reports whether a stream is currently accepting transcripts.
func (p *PushSource) Listening() bool {
	p.mu.Lock()
	stream := p.current
	p.mu.Unlock()
	return stream != nil && !stream.isClosed()
}

type pushStream struct {
	mu     sync.Mutex
	events chan domain.TranscriptEvent
	done   chan struct{}
	closed bool
	err    error
}

func (s *pushStream) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *pushStream) Stop() error {
	s.end(nil)
	return nil
}

func (s *pushStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *pushStream) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.err = err
	s.closed = true
	close(s.events)
	close(s.done)
}

func (s *pushStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *pushStream) deliver(event domain.TranscriptEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotListening
	}
	select {
	case s.events <- event:
		return nil
	default:
		return ErrBacklogFull
	}
}
