package usecase

import (
	"time"

	"go.uber.org/zap"

	"safetour/internal/domain"
)

// Timers never mutate session state; they post a command tagged with the alert
// id and the loop drops it if the alert has moved on.

func (c *EmergencyController) scheduleHandoff(alert *pendingAlert) {
	id := alert.id
	alert.timer = time.AfterFunc(c.cfg.HandoffDelay, func() {
		c.post(handoffCmd{alertID: id})
	})
}

func (c *EmergencyController) scheduleTick(alert *pendingAlert) {
	id := alert.id
	alert.timer = time.AfterFunc(c.cfg.TickInterval, func() {
		c.post(tickCmd{alertID: id})
	})
}

func (c *EmergencyController) handleHandoff(cmd handoffCmd) {
	alert := c.session.alert
	if alert == nil || alert.id != cmd.alertID || alert.phase != phaseHandoff {
		return
	}
	alert.timer = nil

	if alert.silent || c.cfg.CountdownSeconds <= 0 {
		c.startSending(alert)
		return
	}

	alert.phase = phaseCountdown
	alert.remaining = c.cfg.CountdownSeconds
	c.events.SessionStateChanged(domain.SessionStateCountdown, domain.SessionReasonCountdownStarted)
	c.events.CountdownChanged(*alert.countdown())
	c.scheduleTick(alert)
}

func (c *EmergencyController) handleTick(cmd tickCmd) {
	alert := c.session.alert
	if alert == nil || alert.id != cmd.alertID || alert.phase != phaseCountdown {
		return
	}
	alert.timer = nil
	alert.remaining--

	if alert.remaining <= 0 {
		c.logger.Info("countdown elapsed, sending alert", zap.String("alert_id", alert.id))
		c.startSending(alert)
		return
	}

	c.events.CountdownChanged(*alert.countdown())
	c.scheduleTick(alert)
}

func (c *EmergencyController) handleCancel() error {
	alert := c.session.alert
	if alert == nil || alert.phase != phaseCountdown {
		return ErrNotCancellable
	}

	alert.stopTimer()
	alert.phase = phaseCancelled
	record := c.dispatcher.recordCancelled(c.ctx, alert)
	c.session.lastOutcome = &record

	c.logger.Info("alert cancelled during countdown",
		zap.String("alert_id", alert.id),
		zap.Int("remaining_seconds", alert.remaining),
	)
	c.events.AlertDispatched(record)
	c.events.SessionStateChanged(domain.SessionStateCancelled, domain.SessionReasonAlertCancelled)
	return nil
}

func (c *EmergencyController) handleSendNow() error {
	alert := c.session.alert
	if alert == nil {
		return ErrNoPendingAlert
	}

	switch alert.phase {
	case phaseHandoff, phaseCountdown:
		c.startSending(alert)
		return nil
	case phaseSending:
		c.logger.Debug("send requested while alert already in flight", zap.String("alert_id", alert.id))
		return nil
	default:
		return ErrResetRequired
	}
}
