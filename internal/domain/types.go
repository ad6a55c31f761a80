package domain

import "time"

// SessionState models the listening/alert lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateArmed     SessionState = "armed"
	SessionStateTriggered SessionState = "triggered"
	SessionStateCountdown SessionState = "countdown"
	SessionStateSending   SessionState = "sending"
	SessionStateCancelled SessionState = "cancelled"
	SessionStateFailed    SessionState = "failed"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady              SessionStateReason = "ready"
	SessionReasonListeningStarted   SessionStateReason = "listening_started"
	SessionReasonListeningRestarted SessionStateReason = "listening_restarted"
	SessionReasonListeningStopped   SessionStateReason = "listening_stopped"
	SessionReasonTriggerDetected    SessionStateReason = "trigger_detected"
	SessionReasonCountdownStarted   SessionStateReason = "countdown_started"
	SessionReasonAlertSending       SessionStateReason = "alert_sending"
	SessionReasonAlertSent          SessionStateReason = "alert_sent"
	SessionReasonAlertFailed        SessionStateReason = "alert_failed"
	SessionReasonAlertCancelled     SessionStateReason = "alert_cancelled"
	SessionReasonSessionReset       SessionStateReason = "session_reset"
	SessionReasonRecognitionFailed  SessionStateReason = "recognition_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup             ErrorCode = "startup"
	ErrorCodeAudioStop           ErrorCode = "audio_stop"
	ErrorCodeAudioStream         ErrorCode = "audio_stream"
	ErrorCodeRecognition         ErrorCode = "recognition"
	ErrorCodeLocationUnavailable ErrorCode = "location_unavailable"
	ErrorCodeContacts            ErrorCode = "contacts"
	ErrorCodeSubmission          ErrorCode = "submission"
	ErrorCodeHistory             ErrorCode = "history"
)

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a source.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// IsFinal reports whether the event carries settled text.
func (e TranscriptEvent) IsFinal() bool {
	return e.Kind == TranscriptKindFinal
}

// Location is a one-shot position fix.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Contact is an emergency contact owned by the user profile.
type Contact struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship,omitempty"`
	Primary      bool   `json:"primary"`
}

// UserDetails identifies the traveller in an alert.
type UserDetails struct {
	UserID      string `json:"userId,omitempty"`
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	DigitalID   string `json:"digitalId,omitempty"`
}

// EmergencyAlertPayload is submitted to the alert endpoint once per trigger.
type EmergencyAlertPayload struct {
	AlertID     string       `json:"alertId"`
	TriggerWord string       `json:"triggerWord"`
	Transcript  string       `json:"transcript,omitempty"`
	Location    *Location    `json:"location"`
	Contacts    []Contact    `json:"contacts"`
	SilentMode  bool         `json:"silentMode"`
	UserDetails *UserDetails `json:"userDetails"`
	TriggeredAt time.Time    `json:"triggeredAt"`
}

// SubmitResult is the endpoint's answer to a successful submission.
type SubmitResult struct {
	AlertID string `json:"alertId,omitempty"`
	Message string `json:"message,omitempty"`
}

// AlertOutcome is the terminal status of one trigger.
type AlertOutcome string

const (
	AlertOutcomeSent      AlertOutcome = "sent"
	AlertOutcomeFailed    AlertOutcome = "failed"
	AlertOutcomeCancelled AlertOutcome = "cancelled"
)

// TriggerRecord is one entry of the recent-triggers history.
type TriggerRecord struct {
	AlertID       string       `json:"alertId"`
	TriggerWord   string       `json:"triggerWord"`
	Outcome       AlertOutcome `json:"outcome"`
	SilentMode    bool         `json:"silentMode"`
	Location      *Location    `json:"location,omitempty"`
	ContactsCount int          `json:"contactsCount"`
	Detail        string       `json:"detail,omitempty"`
	TriggeredAt   time.Time    `json:"triggeredAt"`
	CompletedAt   time.Time    `json:"completedAt"`
}

// CountdownState is the cancellable window before a non-silent alert is sent.
type CountdownState struct {
	RemainingSeconds int  `json:"remainingSeconds"`
	Cancellable      bool `json:"cancellable"`
}

// Status summarizes the current runtime status.
type Status struct {
	State        SessionState    `json:"state"`
	Armed        bool            `json:"armed"`
	Triggered    bool            `json:"triggered"`
	TriggerWord  string          `json:"triggerWord,omitempty"`
	Countdown    *CountdownState `json:"countdown,omitempty"`
	SilentMode   bool            `json:"silentMode"`
	TriggerWords []string        `json:"triggerWords"`
	LastOutcome  *TriggerRecord  `json:"lastOutcome,omitempty"`
	Message      string          `json:"message,omitempty"`
}
