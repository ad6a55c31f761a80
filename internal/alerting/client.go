// Package alerting delivers emergency alert payloads to the backend.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"safetour/internal/domain"
)

var (
	ErrEndpointNotConfigured = errors.New("alert endpoint is not configured")
	ErrRejected              = errors.New("alert rejected by endpoint")
)

// Config describes the alert endpoint.
type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// HTTPSubmitter posts each alert exactly once. The alert id is sent as the
// Idempotency-Key so a backend can discard duplicates, but the client itself
// never retries.
type HTTPSubmitter struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewHTTPSubmitter(cfg Config, logger *zap.Logger) *HTTPSubmitter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSubmitter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "POST " + r.URL.Path
				}),
			),
		},
		logger: logger.Named("alerting"),
	}
}

type submitResponse struct {
	Success *bool  `json:"success"`
	AlertID string `json:"alertId"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (s *HTTPSubmitter) Submit(ctx context.Context, payload domain.EmergencyAlertPayload) (domain.SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "submit emergency alert", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("alert.id", payload.AlertID),
		attribute.String("alert.trigger_word", payload.TriggerWord),
		attribute.Bool("alert.silent_mode", payload.SilentMode),
		attribute.Bool("alert.has_location", payload.Location != nil),
		attribute.Int("alert.contacts", len(payload.Contacts)),
	)

	result, err := s.submit(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.SubmitResult{}, err
	}
	return result, nil
}

func (s *HTTPSubmitter) submit(ctx context.Context, payload domain.EmergencyAlertPayload) (domain.SubmitResult, error) {
	endpoint := strings.TrimSpace(s.cfg.Endpoint)
	if endpoint == "" {
		return domain.SubmitResult{}, ErrEndpointNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("encode alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", payload.AlertID)
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("send alert: %w", err)
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("read alert response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.SubmitResult{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, snippet(raw))
	}

	result := domain.SubmitResult{AlertID: payload.AlertID}
	if len(bytes.TrimSpace(raw)) == 0 {
		return result, nil
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		s.logger.Debug("alert endpoint returned a non-JSON body", zap.String("alert_id", payload.AlertID))
		return result, nil
	}
	if decoded.Success != nil && !*decoded.Success {
		reason := decoded.Error
		if reason == "" {
			reason = decoded.Message
		}
		if reason == "" {
			reason = "success=false"
		}
		return domain.SubmitResult{}, fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	if decoded.AlertID != "" {
		result.AlertID = decoded.AlertID
	}
	result.Message = decoded.Message
	return result, nil
}

func snippet(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "empty body"
	}
	if runes := []rune(text); len(runes) > 200 {
		return string(runes[:200]) + "..."
	}
	return text
}
