package notify

import (
	"go.uber.org/zap"

	"safetour/internal/domain"
	"safetour/internal/ports"
)

// Fanout forwards every event to each sink in order.
type Fanout struct {
	sinks []ports.EventSink
}

func NewFanout(sinks ...ports.EventSink) *Fanout {
	kept := make([]ports.EventSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	return &Fanout{sinks: kept}
}

// Add appends a sink. It must be called before the fanout is handed to a
// controller.
func (f *Fanout) Add(sink ports.EventSink) {
	if sink != nil {
		f.sinks = append(f.sinks, sink)
	}
}

func (f *Fanout) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	for _, sink := range f.sinks {
		sink.SessionStateChanged(state, reason)
	}
}

func (f *Fanout) PartialTranscript(text string) {
	for _, sink := range f.sinks {
		sink.PartialTranscript(text)
	}
}

func (f *Fanout) CountdownChanged(countdown domain.CountdownState) {
	for _, sink := range f.sinks {
		sink.CountdownChanged(countdown)
	}
}

func (f *Fanout) AlertDispatched(record domain.TriggerRecord) {
	for _, sink := range f.sinks {
		sink.AlertDispatched(record)
	}
}

func (f *Fanout) SessionError(code domain.ErrorCode, detail string) {
	for _, sink := range f.sinks {
		sink.SessionError(code, detail)
	}
}

// LogSink writes controller events as structured log records.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("events")}
}

func (l *LogSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	l.logger.Info("session state changed", zap.String("state", string(state)), zap.String("reason", string(reason)))
}

func (l *LogSink) PartialTranscript(text string) {
	l.logger.Debug("partial transcript", zap.Int("chars", len(text)))
}

func (l *LogSink) CountdownChanged(countdown domain.CountdownState) {
	l.logger.Debug("countdown", zap.Int("remaining_seconds", countdown.RemainingSeconds), zap.Bool("cancellable", countdown.Cancellable))
}

func (l *LogSink) AlertDispatched(record domain.TriggerRecord) {
	l.logger.Info("alert finished",
		zap.String("alert_id", record.AlertID),
		zap.String("outcome", string(record.Outcome)),
		zap.String("trigger_word", record.TriggerWord),
		zap.Bool("silent_mode", record.SilentMode),
	)
}

func (l *LogSink) SessionError(code domain.ErrorCode, detail string) {
	l.logger.Warn("session error", zap.String("code", string(code)), zap.String("detail", detail))
}
