package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"safetour/internal/alerting"
	"safetour/internal/api"
	"safetour/internal/audio"
	"safetour/internal/config"
	"safetour/internal/domain"
	"safetour/internal/listening"
	"safetour/internal/location"
	"safetour/internal/logging"
	"safetour/internal/metrics"
	"safetour/internal/notify"
	"safetour/internal/ports"
	"safetour/internal/providers/deepgram"
	"safetour/internal/retention"
	"safetour/internal/store"
	"safetour/internal/usecase"
	"safetour/internal/vocabulary"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Logger     *zap.Logger
	Controller *usecase.EmergencyController
	Router     *gin.Engine
	Contacts   *store.CachedContacts
	History    *store.HistoryStore
	Vocabulary *vocabulary.Vocabulary
	Metrics    *metrics.Metrics
	Hub        *notify.Hub
	// Push is nil when transcripts come from the microphone.
	Push *listening.PushSource

	db        *gorm.DB
	retention *retention.Job
	closers   []func() error
}

// Build loads configuration and wires all backend dependencies. The extra
// sink, when not nil, receives every controller event alongside the
// built-in sinks.
func Build(extra ports.EventSink) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}
	return BuildWith(cfg, extra, logger)
}

// BuildWith wires the runtime graph from an already resolved configuration.
func BuildWith(cfg config.Config, extra ports.EventSink, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Services{Config: cfg, Logger: logger}

	vocab, err := vocabulary.Load(cfg.Trigger.VocabularyFile, cfg.Trigger.Words, cfg.Trigger.IterationLimit)
	if err != nil {
		return nil, err
	}
	s.Vocabulary = vocab

	if err := ensureSQLiteDir(cfg.Store); err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	s.db = db
	s.closers = append(s.closers, func() error { return store.Close(db) })

	s.Contacts = store.NewCachedContacts(store.NewContactStore(db), cfg.Store.ContactsCacheTTL)
	s.History = store.NewHistoryStore(db)

	locator, err := s.buildLocation(cfg.Location)
	if err != nil {
		s.Close()
		return nil, err
	}

	source, err := s.buildSource(cfg, vocab.Words())
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Metrics = metrics.New()
	s.Hub = notify.NewHub(0)
	s.closers = append(s.closers, func() error { s.Hub.Close(); return nil })
	events := notify.NewFanout(s.Hub, notify.NewLogSink(logger), s.Metrics, extra)

	s.Controller = usecase.NewEmergencyController(
		usecase.Dependencies{
			Source:     source,
			Normalizer: vocab,
			Location:   locator,
			Contacts:   s.Contacts,
			Profile:    newProfile(cfg.User),
			Submitter: alerting.NewHTTPSubmitter(alerting.Config{
				Endpoint: cfg.Alert.Endpoint,
				Token:    cfg.Alert.Token,
				Timeout:  cfg.Alert.Timeout,
			}, logger),
			History: s.History,
			Events:  events,
			Logger:  logger,
		},
		usecase.Config{
			TriggerWords:     vocab.Words(),
			SilentMode:       cfg.Trigger.SilentMode,
			CountdownSeconds: cfg.Trigger.CountdownSeconds,
			HandoffDelay:     cfg.Trigger.HandoffDelay,
			RestartDelay:     cfg.Trigger.RestartDelay,
			MaxRestarts:      cfg.Trigger.MaxRestarts,
			LocationTimeout:  cfg.Location.Timeout,
			SubmitTimeout:    cfg.Alert.Timeout,
		},
	)

	deps := api.Dependencies{
		Session:    s.Controller,
		Contacts:   s.Contacts,
		History:    s.History,
		Events:     s.Hub,
		Metrics:    s.Metrics.Handler(),
		Middleware: []gin.HandlerFunc{s.Metrics.Middleware()},
		Logger:     logger,
	}
	if s.Push != nil {
		deps.Transcripts = s.Push
	}
	s.Router = api.NewRouter(deps)

	s.retention = retention.NewJob(s.History, time.Duration(cfg.Store.RetentionDays)*24*time.Hour, logger)
	if err := s.retention.Start(cfg.Store.PruneSchedule); err != nil {
		s.Close()
		return nil, err
	}

	logger.Info("sentinel services ready",
		zap.String("source", cfg.TranscriptSource),
		zap.Strings("triggerWords", vocab.Words()),
		zap.String("dbDriver", cfg.Store.Driver),
		zap.Bool("alertEndpointConfigured", cfg.Alert.Endpoint != ""),
	)
	return s, nil
}

// HTTPServer returns a server for the API with request tracing enabled.
func (s *Services) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.Config.HTTP.Addr,
		Handler:           otelhttp.NewHandler(s.Router, "sentinel.api"),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Close stops the controller and releases every resource in reverse order.
func (s *Services) Close() error {
	if s.Controller != nil {
		s.Controller.Close()
	}
	if s.retention != nil {
		s.retention.Stop()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	_ = s.Logger.Sync()
	return errors.Join(errs...)
}

func (s *Services) buildLocation(cfg config.LocationConfig) (ports.LocationProvider, error) {
	var providers []ports.LocationProvider
	if cfg.HasStatic {
		static, err := location.NewStatic(cfg.Latitude, cfg.Longitude, cfg.Accuracy)
		if err != nil {
			return nil, err
		}
		providers = append(providers, static)
	}
	if cfg.GeoIPDatabase != "" {
		geo, err := location.OpenGeoIP(cfg.GeoIPDatabase, cfg.LookupURL, &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, geo.Close)
		providers = append(providers, geo)
	}
	if len(providers) == 0 {
		providers = append(providers, location.Unavailable{})
	}
	return location.NewChain(cfg.Timeout, s.Logger, providers...), nil
}

func (s *Services) buildSource(cfg config.Config, keywords []string) (ports.TranscriptSource, error) {
	switch cfg.TranscriptSource {
	case config.SourceDeepgram:
		if cfg.Deepgram.APIKey == "" {
			return nil, deepgram.ErrMissingAPIKey
		}
		provider := deepgram.NewProvider(deepgram.Config{
			APIKey:       cfg.Deepgram.APIKey,
			APIBaseURL:   cfg.Deepgram.APIBaseURL,
			Model:        cfg.Deepgram.Model,
			Language:     cfg.Deepgram.Language,
			SmartFormat:  cfg.Deepgram.SmartFormat,
			Keywords:     keywords,
			KeywordBoost: cfg.Deepgram.KeywordBoost,
			Endpointing:  cfg.Deepgram.Endpointing,
		})
		return listening.NewMicrophoneSource(
			audio.NewFFMPEGCapture(audio.FFMPEGOptions{Command: cfg.Audio.RecorderCommand}),
			provider,
			listening.MicrophoneConfig{
				Audio: ports.AudioConfig{
					SampleRate:  cfg.Audio.SampleRate,
					Channels:    cfg.Audio.Channels,
					InputFormat: cfg.Audio.InputFormat,
					InputDevice: cfg.Audio.InputDevice,
				},
				Streaming: ports.StreamingConfig{
					SampleRate:     cfg.Audio.SampleRate,
					Channels:       cfg.Audio.Channels,
					Encoding:       "linear16",
					InterimResults: true,
				},
				ChunkSize: cfg.Session.ChunkSize,
			},
			s.Logger,
		), nil
	case config.SourcePush, "":
		s.Push = listening.NewPushSource(64)
		return s.Push, nil
	default:
		return nil, fmt.Errorf("unknown transcript source %q", cfg.TranscriptSource)
	}
}

func ensureSQLiteDir(cfg config.StoreConfig) error {
	if cfg.Driver != "" && cfg.Driver != "sqlite" {
		return nil
	}
	dsn := strings.TrimPrefix(cfg.DSN, "file:")
	if dsn == "" || strings.Contains(dsn, ":memory:") {
		return nil
	}
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

type profile struct {
	details *domain.UserDetails
}

func newProfile(cfg config.UserConfig) profile {
	if cfg.Empty() {
		return profile{}
	}
	return profile{details: &domain.UserDetails{
		UserID:      cfg.ID,
		Name:        cfg.Name,
		Phone:       cfg.Phone,
		Email:       cfg.Email,
		Nationality: cfg.Nationality,
		DigitalID:   cfg.DigitalID,
	}}
}

func (p profile) UserDetails(context.Context) (*domain.UserDetails, error) {
	if p.details == nil {
		return nil, nil
	}
	details := *p.details
	return &details, nil
}
