package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"safetour/internal/bootstrap"
	"safetour/internal/config"
	"safetour/internal/domain"
	"safetour/internal/notify"
	"safetour/internal/usecase"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services *bootstrap.Services
	server   *http.Server
	bootErr  error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = services

	if services.Config.HTTP.Addr != "" {
		a.server = services.HTTPServer()
		go func() {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				services.Logger.Warn("local api stopped", zap.Error(err))
				a.SessionError(domain.ErrorCodeStartup, err.Error())
			}
		}()
	}
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(ctx context.Context) {
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
	}
	if a.services != nil {
		_ = a.services.Close()
	}
}

// Arm starts listening for trigger words.
func (a *App) Arm() (domain.Status, error) {
	return a.do(func(ctx context.Context, c *usecase.EmergencyController) error { return c.Arm(ctx) })
}

// Disarm stops listening without touching a pending alert.
func (a *App) Disarm() (domain.Status, error) {
	return a.do(func(ctx context.Context, c *usecase.EmergencyController) error { return c.Disarm(ctx) })
}

// Reset clears a finished or pending trigger.
func (a *App) Reset() (domain.Status, error) {
	return a.do(func(ctx context.Context, c *usecase.EmergencyController) error { return c.Reset(ctx) })
}

// CancelAlert stops the countdown before the alert is sent.
func (a *App) CancelAlert() (domain.Status, error) {
	return a.do(func(ctx context.Context, c *usecase.EmergencyController) error { return c.Cancel(ctx) })
}

// SendNow skips the remaining countdown.
func (a *App) SendNow() (domain.Status, error) {
	return a.do(func(ctx context.Context, c *usecase.EmergencyController) error { return c.SendNow(ctx) })
}

// SetSilentMode toggles silent alerts for future triggers.
func (a *App) SetSilentMode(silent bool) (domain.Status, error) {
	return a.do(func(ctx context.Context, c *usecase.EmergencyController) error { return c.SetSilentMode(ctx, silent) })
}

// PushTranscript forwards speech recognized by the frontend.
func (a *App) PushTranscript(text string, isFinal bool) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if a.services.Push == nil {
		return fmt.Errorf("transcripts come from the %s source", a.services.Config.TranscriptSource)
	}
	return a.services.Push.Push(text, isFinal)
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.services == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateFailed, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.services.Controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.services == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	info := map[string]string{
		"transcriptSource": cfg.TranscriptSource,
		"vocabularyFile":   cfg.Trigger.VocabularyFile,
		"countdown":        fmt.Sprintf("%ds", cfg.Trigger.CountdownSeconds),
		"alertEndpoint":    cfg.Alert.Endpoint,
		"database":         cfg.Store.Driver,
		"api":              cfg.HTTP.Addr,
	}
	if cfg.TranscriptSource != config.SourcePush {
		info["model"] = cfg.Deepgram.Model
		info["language"] = cfg.Deepgram.Language
		info["audioInput"] = cfg.Audio.InputDevice
	}
	return info
}

func (a *App) do(action func(ctx context.Context, c *usecase.EmergencyController) error) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := action(ctx, a.services.Controller); err != nil {
		return a.services.Controller.Status(), err
	}
	return a.services.Controller.Status(), nil
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, notify.EventState, notify.NewStatePayload(state, reason))
}

// PartialTranscript emits live transcript text.
func (a *App) PartialTranscript(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, notify.EventTranscript, map[string]string{"text": text})
}

// CountdownChanged emits the remaining countdown seconds.
func (a *App) CountdownChanged(countdown domain.CountdownState) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, notify.EventCountdown, countdown)
}

// AlertDispatched emits the outcome of a trigger.
func (a *App) AlertDispatched(record domain.TriggerRecord) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, notify.EventAlert, notify.NewAlertPayload(record))
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, notify.EventError, notify.NewErrorPayload(code, detail))
}
