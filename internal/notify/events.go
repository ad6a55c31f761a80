// Package notify fans controller events out to the desktop shell, server-sent
// event clients, logs and metrics.
package notify

import (
	"time"

	"safetour/internal/domain"
)

// Event names shared by the desktop runtime and the SSE stream.
const (
	EventState      = "sentinel:state"
	EventTranscript = "sentinel:transcript"
	EventCountdown  = "sentinel:countdown"
	EventAlert      = "sentinel:alert"
	EventError      = "sentinel:error"
)

// StatePayload is the body of EventState.
type StatePayload struct {
	State   domain.SessionState       `json:"state"`
	Reason  domain.SessionStateReason `json:"reason"`
	Message string                    `json:"message"`
	At      time.Time                 `json:"at"`
}

// ErrorPayload is the body of EventError.
type ErrorPayload struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Detail  string           `json:"detail,omitempty"`
}

// AlertPayload is the body of EventAlert.
type AlertPayload struct {
	Record  domain.TriggerRecord `json:"record"`
	Message string               `json:"message"`
}

func NewStatePayload(state domain.SessionState, reason domain.SessionStateReason) StatePayload {
	return StatePayload{State: state, Reason: reason, Message: StateMessage(reason), At: time.Now().UTC()}
}

func NewErrorPayload(code domain.ErrorCode, detail string) ErrorPayload {
	return ErrorPayload{Code: code, Message: ErrorMessage(code, detail), Detail: detail}
}

func NewAlertPayload(record domain.TriggerRecord) AlertPayload {
	return AlertPayload{Record: record, Message: OutcomeMessage(record)}
}

// StateMessage is the human-readable text for a state transition.
func StateMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Voice SOS ready"
	case domain.SessionReasonListeningStarted:
		return "Listening for trigger words"
	case domain.SessionReasonListeningRestarted:
		return "Listening resumed after a recognition error"
	case domain.SessionReasonListeningStopped:
		return "Listening stopped"
	case domain.SessionReasonTriggerDetected:
		return "Trigger word detected"
	case domain.SessionReasonCountdownStarted:
		return "Sending emergency alert. Tap cancel to stop"
	case domain.SessionReasonAlertSending:
		return "Sending emergency alert..."
	case domain.SessionReasonAlertSent:
		return "Emergency alert sent"
	case domain.SessionReasonAlertFailed:
		return "Emergency alert failed. Reset to try again"
	case domain.SessionReasonAlertCancelled:
		return "Emergency alert cancelled"
	case domain.SessionReasonSessionReset:
		return "Session reset"
	case domain.SessionReasonRecognitionFailed:
		return "Speech recognition unavailable; listening stopped"
	default:
		return ""
	}
}

// ErrorMessage is the human-readable headline for an error code.
func ErrorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAudioStop:
		return "Microphone stop issue"
	case domain.ErrorCodeAudioStream:
		return "Microphone streaming issue"
	case domain.ErrorCodeRecognition:
		return "Speech recognition error"
	case domain.ErrorCodeLocationUnavailable:
		return "Location unavailable; alert sent without precise location"
	case domain.ErrorCodeContacts:
		return "Emergency contacts could not be loaded"
	case domain.ErrorCodeSubmission:
		return "Emergency alert could not be sent"
	case domain.ErrorCodeHistory:
		return "Trigger history could not be saved"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

// OutcomeMessage summarizes a finished trigger.
func OutcomeMessage(record domain.TriggerRecord) string {
	switch record.Outcome {
	case domain.AlertOutcomeSent:
		if record.Detail != "" {
			return "Emergency alert sent: " + record.Detail
		}
		return "Emergency alert sent"
	case domain.AlertOutcomeFailed:
		return "Emergency alert failed"
	case domain.AlertOutcomeCancelled:
		return "Emergency alert cancelled"
	default:
		return ""
	}
}
