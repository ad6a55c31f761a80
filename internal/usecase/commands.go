package usecase

import (
	"safetour/internal/domain"
	"safetour/internal/ports"
)

// command is anything the controller loop consumes.
type command interface{}

type (
	armCmd      struct{ reply chan error }
	disarmCmd   struct{ reply chan error }
	resetCmd    struct{ reply chan error }
	cancelCmd   struct{ reply chan error }
	sendNowCmd  struct{ reply chan error }
	statusCmd   struct{ reply chan domain.Status }
	setWordsCmd struct {
		words []string
		reply chan error
	}
	setSilentCmd struct {
		silent bool
		reply  chan error
	}
)

type transcriptCmd struct {
	streamID uint64
	event    domain.TranscriptEvent
}

type streamEndedCmd struct {
	streamID uint64
	err      error
}

type restartCmd struct{ streamID uint64 }

type handoffCmd struct{ alertID string }

type tickCmd struct{ alertID string }

type dispatchDoneCmd struct {
	alertID string
	result  dispatchResult
}

// forwardTranscripts relays stream events into the loop, tagged with the
// stream they came from, and reports the end of the stream.
func forwardTranscripts(stream ports.TranscriptStream, streamID uint64, post func(command) bool) {
	for event := range stream.Events() {
		if !post(transcriptCmd{streamID: streamID, event: event}) {
			return
		}
	}
	post(streamEndedCmd{streamID: streamID, err: stream.Err()})
}
