package usecase

import (
	"time"

	"safetour/internal/domain"
	"safetour/internal/ports"
)

type alertPhase int

const (
	phaseHandoff alertPhase = iota
	phaseCountdown
	phaseSending
	phaseCancelled
	phaseFailed
)

// pendingAlert is the trigger currently owned by the session. It exists from
// the moment a trigger word matches until reset or a successful dispatch.
type pendingAlert struct {
	id          string
	word        string
	transcript  string
	silent      bool
	triggeredAt time.Time

	phase     alertPhase
	remaining int
	timer     *time.Timer
}

func (a *pendingAlert) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *pendingAlert) countdown() *domain.CountdownState {
	if a.phase != phaseCountdown {
		return nil
	}
	return &domain.CountdownState{RemainingSeconds: a.remaining, Cancellable: true}
}

// triggerSession is only touched by the controller loop goroutine.
type triggerSession struct {
	armed   bool
	matcher triggerMatcher

	stream   ports.TranscriptStream
	streamID uint64
	restarts int

	alert       *pendingAlert
	lastOutcome *domain.TriggerRecord
}

func (s *triggerSession) triggered() bool {
	return s.alert != nil
}

func (s *triggerSession) state() domain.SessionState {
	if s.alert != nil {
		switch s.alert.phase {
		case phaseCountdown:
			return domain.SessionStateCountdown
		case phaseSending:
			return domain.SessionStateSending
		case phaseCancelled:
			return domain.SessionStateCancelled
		case phaseFailed:
			return domain.SessionStateFailed
		default:
			return domain.SessionStateTriggered
		}
	}
	if s.armed {
		return domain.SessionStateArmed
	}
	return domain.SessionStateIdle
}
