package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safetour/internal/domain"
	"safetour/internal/ports"
)

var (
	ErrResetRequired    = errors.New("a previous trigger must be reset before arming again")
	ErrSessionArmed     = errors.New("trigger words cannot change while the session is armed")
	ErrNotCancellable   = errors.New("no countdown is running")
	ErrNoPendingAlert   = errors.New("no pending alert")
	ErrNoTriggerWords   = errors.New("no trigger words configured")
	ErrControllerClosed = errors.New("emergency controller is closed")
)

// Config controls trigger detection and alert dispatch timing.
type Config struct {
	TriggerWords     []string
	SilentMode       bool
	CountdownSeconds int
	TickInterval     time.Duration
	HandoffDelay     time.Duration
	RestartDelay     time.Duration
	MaxRestarts      int
	LocationTimeout  time.Duration
	SubmitTimeout    time.Duration
}

// Dependencies are the collaborators the controller consumes.
type Dependencies struct {
	Source     ports.TranscriptSource
	Normalizer ports.TranscriptNormalizer
	Location   ports.LocationProvider
	Contacts   ports.ContactsReader
	Profile    ports.ProfileProvider
	Submitter  ports.AlertSubmitter
	History    ports.HistorySink
	Events     ports.EventSink
	Logger     *zap.Logger
}

// EmergencyController arms voice listening, detects trigger words and
// dispatches at most one alert per trigger. All session state is owned by a
// single loop goroutine; public methods post commands to it.
type EmergencyController struct {
	source     ports.TranscriptSource
	normalizer ports.TranscriptNormalizer
	events     ports.EventSink
	dispatcher alertDispatcher
	logger     *zap.Logger
	cfg        Config

	ctx    context.Context
	cancel context.CancelFunc

	commands  chan command
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// loop-owned
	session    triggerSession
	words      []string
	silentMode bool
}

func NewEmergencyController(deps Dependencies, cfg Config) *EmergencyController {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.HandoffDelay < 0 {
		cfg.HandoffDelay = 0
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 5
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("emergency")

	ctx, cancel := context.WithCancel(context.Background())
	c := &EmergencyController{
		source:     deps.Source,
		normalizer: deps.Normalizer,
		events:     deps.Events,
		logger:     logger,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		commands:   make(chan command, 64),
		closeCh:    make(chan struct{}),
		done:       make(chan struct{}),
		silentMode: cfg.SilentMode,
		dispatcher: alertDispatcher{
			contacts:        deps.Contacts,
			location:        deps.Location,
			profile:         deps.Profile,
			submitter:       deps.Submitter,
			history:         deps.History,
			logger:          logger.Named("dispatcher"),
			locationTimeout: cfg.LocationTimeout,
			submitTimeout:   cfg.SubmitTimeout,
		},
	}
	c.words = c.triggerWords(cfg.TriggerWords)

	go c.run()
	return c
}

// Arm starts scanning the transcript source for trigger words.
func (c *EmergencyController) Arm(ctx context.Context) error {
	return c.request(ctx, func(reply chan error) command { return armCmd{reply: reply} })
}

// Disarm stops listening. A pending countdown or in-flight alert is unaffected.
func (c *EmergencyController) Disarm(ctx context.Context) error {
	return c.request(ctx, func(reply chan error) command { return disarmCmd{reply: reply} })
}

// Reset clears a previous trigger and disarms, allowing the session to be armed again.
func (c *EmergencyController) Reset(ctx context.Context) error {
	return c.request(ctx, func(reply chan error) command { return resetCmd{reply: reply} })
}

// Cancel discards the pending alert while its countdown is running.
func (c *EmergencyController) Cancel(ctx context.Context) error {
	return c.request(ctx, func(reply chan error) command { return cancelCmd{reply: reply} })
}

// SendNow skips the remaining countdown and submits the pending alert.
func (c *EmergencyController) SendNow(ctx context.Context) error {
	return c.request(ctx, func(reply chan error) command { return sendNowCmd{reply: reply} })
}

// SetTriggerWords replaces the trigger list used by the next armed session.
func (c *EmergencyController) SetTriggerWords(ctx context.Context, words []string) error {
	return c.request(ctx, func(reply chan error) command { return setWordsCmd{words: words, reply: reply} })
}

// SetSilentMode toggles whether future triggers skip the countdown.
func (c *EmergencyController) SetSilentMode(ctx context.Context, silent bool) error {
	return c.request(ctx, func(reply chan error) command { return setSilentCmd{silent: silent, reply: reply} })
}

// Status returns the current session status.
func (c *EmergencyController) Status() domain.Status {
	reply := make(chan domain.Status, 1)
	if !c.post(statusCmd{reply: reply}) {
		return domain.Status{State: domain.SessionStateIdle, Message: ErrControllerClosed.Error()}
	}
	select {
	case status := <-reply:
		return status
	case <-c.done:
		return domain.Status{State: domain.SessionStateIdle, Message: ErrControllerClosed.Error()}
	}
}

// Close stops the loop and releases the transcript source.
func (c *EmergencyController) Close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
	<-c.done
}

func (c *EmergencyController) request(ctx context.Context, build func(chan error) command) error {
	reply := make(chan error, 1)
	cmd := build(reply)

	select {
	case c.commands <- cmd:
	case <-c.closeCh:
		return ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrControllerClosed
	}
}

func (c *EmergencyController) post(cmd command) bool {
	select {
	case c.commands <- cmd:
		return true
	case <-c.closeCh:
		return false
	}
}

func (c *EmergencyController) run() {
	defer close(c.done)
	defer c.cancel()

	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)

	for {
		select {
		case <-c.closeCh:
			c.shutdown()
			return
		case cmd := <-c.commands:
			c.handle(cmd)
		}
	}
}

func (c *EmergencyController) handle(cmd command) {
	switch cmd := cmd.(type) {
	case transcriptCmd:
		c.handleTranscript(cmd)
	case streamEndedCmd:
		c.handleStreamEnded(cmd)
	case restartCmd:
		c.handleRestart(cmd)
	case handoffCmd:
		c.handleHandoff(cmd)
	case tickCmd:
		c.handleTick(cmd)
	case dispatchDoneCmd:
		c.handleDispatchDone(cmd)
	case armCmd:
		cmd.reply <- c.handleArm()
	case disarmCmd:
		cmd.reply <- c.handleDisarm()
	case resetCmd:
		cmd.reply <- c.handleReset()
	case cancelCmd:
		cmd.reply <- c.handleCancel()
	case sendNowCmd:
		cmd.reply <- c.handleSendNow()
	case setWordsCmd:
		cmd.reply <- c.handleSetWords(cmd.words)
	case setSilentCmd:
		c.silentMode = cmd.silent
		cmd.reply <- nil
	case statusCmd:
		cmd.reply <- c.snapshot()
	}
}

func (c *EmergencyController) handleArm() error {
	s := &c.session
	if s.triggered() {
		return ErrResetRequired
	}
	if s.armed {
		return nil
	}
	if len(c.words) == 0 {
		return ErrNoTriggerWords
	}

	if err := c.startStream(); err != nil {
		return fmt.Errorf("failed to start listening: %w", err)
	}

	s.armed = true
	s.restarts = 0
	s.matcher = newTriggerMatcher(c.words)
	c.logger.Info("listening armed", zap.Strings("trigger_words", c.words))
	c.events.SessionStateChanged(domain.SessionStateArmed, domain.SessionReasonListeningStarted)
	return nil
}

func (c *EmergencyController) handleDisarm() error {
	s := &c.session
	if !s.armed {
		return nil
	}

	c.stopStream()
	s.armed = false
	c.logger.Info("listening disarmed", zap.Bool("triggered", s.triggered()))
	c.events.SessionStateChanged(s.state(), domain.SessionReasonListeningStopped)
	return nil
}

func (c *EmergencyController) handleReset() error {
	s := &c.session
	c.stopStream()
	s.armed = false

	if alert := s.alert; alert != nil {
		alert.stopTimer()
		switch alert.phase {
		case phaseHandoff, phaseCountdown:
			record := c.dispatcher.recordCancelled(c.ctx, alert)
			s.lastOutcome = &record
			c.events.AlertDispatched(record)
		case phaseSending:
			c.logger.Warn("reset while alert in flight; outcome will only be recorded", zap.String("alert_id", alert.id))
		}
		s.alert = nil
	}

	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonSessionReset)
	return nil
}

func (c *EmergencyController) handleSetWords(words []string) error {
	if c.session.armed {
		return ErrSessionArmed
	}
	normalized := c.triggerWords(words)
	if len(normalized) == 0 {
		return ErrNoTriggerWords
	}
	c.words = normalized
	return nil
}

// triggerWords puts words through the same rewriting as transcripts so an
// accepted word can always match.
func (c *EmergencyController) triggerWords(words []string) []string {
	if c.normalizer == nil {
		return NormalizeTriggerWords(words)
	}
	rewritten := make([]string, 0, len(words))
	for _, word := range words {
		rewritten = append(rewritten, c.normalizer.Normalize(word))
	}
	return NormalizeTriggerWords(rewritten)
}

func (c *EmergencyController) handleTranscript(cmd transcriptCmd) {
	s := &c.session
	if cmd.streamID != s.streamID || !s.armed {
		return
	}
	if s.triggered() {
		c.logger.Debug("duplicate trigger suppressed")
		return
	}

	text := cmd.event.Text
	if c.normalizer != nil {
		text = c.normalizer.Normalize(text)
	}
	if text == "" {
		return
	}
	if !cmd.event.IsFinal() {
		c.events.PartialTranscript(cmd.event.Text)
	}

	word, ok := s.matcher.Match(text)
	if !ok {
		return
	}
	c.trigger(word, cmd.event.Text)
}

// trigger marks the session triggered in the same loop step that matched, so
// later transcript events observe it.
func (c *EmergencyController) trigger(word string, transcript string) {
	s := &c.session
	alert := &pendingAlert{
		id:          uuid.NewString(),
		word:        word,
		transcript:  transcript,
		silent:      c.silentMode,
		triggeredAt: time.Now(),
		phase:       phaseHandoff,
	}
	s.alert = alert
	c.stopStream()

	c.logger.Info("trigger word detected",
		zap.String("alert_id", alert.id),
		zap.String("trigger_word", word),
		zap.Bool("silent_mode", alert.silent),
	)
	c.events.SessionStateChanged(domain.SessionStateTriggered, domain.SessionReasonTriggerDetected)
	c.scheduleHandoff(alert)
}

func (c *EmergencyController) startSending(alert *pendingAlert) {
	alert.stopTimer()
	alert.phase = phaseSending
	c.events.SessionStateChanged(domain.SessionStateSending, domain.SessionReasonAlertSending)

	req := dispatchRequest{
		alertID:     alert.id,
		word:        alert.word,
		transcript:  alert.transcript,
		silent:      alert.silent,
		triggeredAt: alert.triggeredAt,
	}
	go func() {
		result := c.dispatcher.Dispatch(c.ctx, req)
		c.post(dispatchDoneCmd{alertID: req.alertID, result: result})
	}()
}

func (c *EmergencyController) handleDispatchDone(cmd dispatchDoneCmd) {
	s := &c.session
	record := cmd.result.record
	alert := s.alert
	current := alert != nil && alert.id == cmd.alertID
	// A newer trigger owns lastOutcome once it exists.
	if alert == nil || current {
		s.lastOutcome = &record
	}

	for _, warning := range cmd.result.warnings {
		c.events.SessionError(warning.code, warning.detail)
	}
	c.events.AlertDispatched(record)

	if !current || alert.phase != phaseSending {
		return
	}

	if record.Outcome == domain.AlertOutcomeSent {
		s.alert = nil
		s.armed = false
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonAlertSent)
		return
	}

	alert.phase = phaseFailed
	c.events.SessionError(domain.ErrorCodeSubmission, record.Detail)
	c.events.SessionStateChanged(domain.SessionStateFailed, domain.SessionReasonAlertFailed)
}

func (c *EmergencyController) startStream() error {
	if c.source == nil {
		return errors.New("no transcript source configured")
	}
	stream, err := c.source.Start(c.ctx)
	if err != nil {
		return err
	}

	s := &c.session
	s.streamID++
	s.stream = stream
	go forwardTranscripts(stream, s.streamID, c.post)
	return nil
}

func (c *EmergencyController) stopStream() {
	s := &c.session
	if s.stream == nil {
		return
	}
	if err := s.stream.Stop(); err != nil {
		c.logger.Debug("transcript source stop reported error", zap.Error(err))
	}
	s.stream = nil
	s.streamID++
}

func (c *EmergencyController) handleStreamEnded(cmd streamEndedCmd) {
	s := &c.session
	if cmd.streamID != s.streamID || s.stream == nil {
		return
	}
	s.stream = nil
	if !s.armed || s.triggered() {
		return
	}

	if cmd.err != nil {
		c.logger.Warn("speech recognition error", zap.Error(cmd.err))
		c.events.SessionError(domain.ErrorCodeRecognition, cmd.err.Error())
	}
	c.scheduleRestart(cmd.streamID)
}

func (c *EmergencyController) scheduleRestart(streamID uint64) {
	time.AfterFunc(c.cfg.RestartDelay, func() {
		c.post(restartCmd{streamID: streamID})
	})
}

func (c *EmergencyController) handleRestart(cmd restartCmd) {
	s := &c.session
	if cmd.streamID != s.streamID || s.stream != nil || !s.armed || s.triggered() {
		return
	}

	if err := c.startStream(); err != nil {
		s.restarts++
		c.logger.Warn("failed to restart listening", zap.Int("attempt", s.restarts), zap.Error(err))
		if s.restarts >= c.cfg.MaxRestarts {
			s.armed = false
			c.events.SessionError(domain.ErrorCodeRecognition, err.Error())
			c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonRecognitionFailed)
			return
		}
		c.scheduleRestart(cmd.streamID)
		return
	}

	s.restarts = 0
	c.events.SessionStateChanged(domain.SessionStateArmed, domain.SessionReasonListeningRestarted)
}

func (c *EmergencyController) snapshot() domain.Status {
	s := &c.session
	status := domain.Status{
		State:        s.state(),
		Armed:        s.armed,
		Triggered:    s.triggered(),
		SilentMode:   c.silentMode,
		TriggerWords: append([]string(nil), c.words...),
	}
	if s.alert != nil {
		status.TriggerWord = s.alert.word
		status.Countdown = s.alert.countdown()
	}
	if s.lastOutcome != nil {
		record := *s.lastOutcome
		status.LastOutcome = &record
	}
	return status
}

func (c *EmergencyController) shutdown() {
	c.stopStream()
	if c.session.alert != nil {
		c.session.alert.stopTimer()
	}
}
