package ports

import (
	"context"
	"io"

	"safetour/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// TranscriptStream is one live run of a transcript source. Events is closed
// when the stream ends; Err reports why once it has.
type TranscriptStream interface {
	Events() <-chan domain.TranscriptEvent
	Stop() error
	Err() error
}

// TranscriptSource produces continuous, interim-result speech transcripts.
type TranscriptSource interface {
	Start(ctx context.Context) (TranscriptStream, error)
}

// TranscriptNormalizer rewrites transcript text before trigger matching.
type TranscriptNormalizer interface {
	Normalize(text string) string
}

// LocationProvider answers one-shot position requests.
type LocationProvider interface {
	Locate(ctx context.Context) (domain.Location, error)
}

// ContactsReader lists the emergency contacts to notify.
type ContactsReader interface {
	ListContacts(ctx context.Context) ([]domain.Contact, error)
}

// ProfileProvider returns the traveller's details, or nil when unknown.
type ProfileProvider interface {
	UserDetails(ctx context.Context) (*domain.UserDetails, error)
}

// AlertSubmitter delivers an alert payload to the backend. Implementations must
// not retry.
type AlertSubmitter interface {
	Submit(ctx context.Context, payload domain.EmergencyAlertPayload) (domain.SubmitResult, error)
}

// HistorySink records past trigger attempts for display.
type HistorySink interface {
	Append(ctx context.Context, record domain.TriggerRecord) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	PartialTranscript(text string)
	CountdownChanged(countdown domain.CountdownState)
	AlertDispatched(record domain.TriggerRecord)
	SessionError(code domain.ErrorCode, detail string)
}
