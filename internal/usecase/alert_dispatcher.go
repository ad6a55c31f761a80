package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"safetour/internal/domain"
	"safetour/internal/ports"
)

type dispatchRequest struct {
	alertID     string
	word        string
	transcript  string
	silent      bool
	triggeredAt time.Time
}

type dispatchWarning struct {
	code   domain.ErrorCode
	detail string
}

type dispatchResult struct {
	record   domain.TriggerRecord
	warnings []dispatchWarning
}

// historyWriteTimeout bounds a history append that outlives the controller.
const historyWriteTimeout = 5 * time.Second

// alertDispatcher turns one confirmed trigger into one submission. It gathers
// the payload right before sending and never retries.
type alertDispatcher struct {
	contacts  ports.ContactsReader
	location  ports.LocationProvider
	profile   ports.ProfileProvider
	submitter ports.AlertSubmitter
	history   ports.HistorySink
	logger    *zap.Logger

	locationTimeout time.Duration
	submitTimeout   time.Duration
}

// Dispatch always returns a record: a panic anywhere below is reported as a
// failed submission.
func (d alertDispatcher) Dispatch(ctx context.Context, req dispatchRequest) (result dispatchResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("emergency alert dispatch panicked",
				zap.String("alert_id", req.alertID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			result = dispatchResult{record: domain.TriggerRecord{
				AlertID:     req.alertID,
				TriggerWord: req.word,
				Outcome:     domain.AlertOutcomeFailed,
				Detail:      fmt.Sprintf("dispatch panicked: %v", r),
				SilentMode:  req.silent,
				TriggeredAt: req.triggeredAt,
				CompletedAt: time.Now(),
			}}
		}
	}()
	return d.dispatch(ctx, req)
}

func (d alertDispatcher) dispatch(ctx context.Context, req dispatchRequest) dispatchResult {
	var result dispatchResult

	payload := domain.EmergencyAlertPayload{
		AlertID:     req.alertID,
		TriggerWord: req.word,
		Transcript:  req.transcript,
		Contacts:    []domain.Contact{},
		SilentMode:  req.silent,
		TriggeredAt: req.triggeredAt,
	}

	if d.contacts != nil {
		contacts, err := d.contacts.ListContacts(ctx)
		if err != nil {
			d.logger.Warn("contacts unavailable, sending alert without contacts", zap.Error(err))
			result.warnings = append(result.warnings, dispatchWarning{code: domain.ErrorCodeContacts, detail: err.Error()})
		} else if contacts != nil {
			payload.Contacts = contacts
		}
	}

	payload.Location = d.locate(ctx, &result)

	if d.profile != nil {
		details, err := d.profile.UserDetails(ctx)
		if err != nil {
			d.logger.Warn("user details unavailable", zap.Error(err))
		} else {
			payload.UserDetails = details
		}
	}

	record := domain.TriggerRecord{
		AlertID:       req.alertID,
		TriggerWord:   req.word,
		SilentMode:    req.silent,
		Location:      payload.Location,
		ContactsCount: len(payload.Contacts),
		TriggeredAt:   req.triggeredAt,
	}

	submitCtx := ctx
	if d.submitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, d.submitTimeout)
		defer cancel()
	}

	submitted, err := d.submitter.Submit(submitCtx, payload)
	record.CompletedAt = time.Now()
	if err != nil {
		record.Outcome = domain.AlertOutcomeFailed
		record.Detail = err.Error()
		d.logger.Error("emergency alert submission failed", zap.String("alert_id", req.alertID), zap.Error(err))
	} else {
		record.Outcome = domain.AlertOutcomeSent
		record.Detail = submitted.Message
		d.logger.Info("emergency alert sent",
			zap.String("alert_id", req.alertID),
			zap.String("trigger_word", req.word),
			zap.Int("contacts", record.ContactsCount),
			zap.Bool("location", record.Location != nil),
		)
	}

	if d.history != nil {
		if err := d.appendHistory(ctx, record); err != nil {
			d.logger.Warn("failed to record trigger history", zap.Error(err))
			result.warnings = append(result.warnings, dispatchWarning{code: domain.ErrorCodeHistory, detail: err.Error()})
		}
	}

	result.record = record
	return result
}

func (d alertDispatcher) locate(ctx context.Context, result *dispatchResult) *domain.Location {
	unavailable := func(err error) *domain.Location {
		d.logger.Warn("location unavailable, alert will lack precise location", zap.Error(err))
		result.warnings = append(result.warnings, dispatchWarning{
			code:   domain.ErrorCodeLocationUnavailable,
			detail: fmt.Sprintf("alert sent without precise location: %v", err),
		})
		return nil
	}

	if d.location == nil {
		return unavailable(fmt.Errorf("no location provider configured"))
	}

	locCtx := ctx
	if d.locationTimeout > 0 {
		var cancel context.CancelFunc
		locCtx, cancel = context.WithTimeout(ctx, d.locationTimeout)
		defer cancel()
	}

	loc, err := d.location.Locate(locCtx)
	if err != nil {
		return unavailable(err)
	}
	return &loc
}

// recordCancelled stores a cancelled trigger; failures are only logged.
func (d alertDispatcher) recordCancelled(ctx context.Context, alert *pendingAlert) domain.TriggerRecord {
	record := domain.TriggerRecord{
		AlertID:     alert.id,
		TriggerWord: alert.word,
		Outcome:     domain.AlertOutcomeCancelled,
		SilentMode:  alert.silent,
		TriggeredAt: alert.triggeredAt,
		CompletedAt: time.Now(),
	}
	if d.history == nil {
		return record
	}
	go func() {
		if err := d.appendHistory(ctx, record); err != nil {
			d.logger.Warn("failed to record cancelled trigger", zap.Error(err))
		}
	}()
	return record
}

// appendHistory writes even after ctx is cancelled, since shutdown must not
// lose an outcome that already happened.
func (d alertDispatcher) appendHistory(ctx context.Context, record domain.TriggerRecord) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()
	return d.history.Append(ctx, record)
}
