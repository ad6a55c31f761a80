package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	SourcePush     = "push"
	SourceDeepgram = "deepgram"
)

// DefaultTriggerWords are armed when neither the environment nor a vocabulary
// file names any.
var DefaultTriggerWords = []string{"help", "sos", "emergency", "danger"}

// Config stores runtime configuration for the emergency sentinel.
type Config struct {
	TranscriptSource string

	Trigger  TriggerConfig
	Alert    AlertConfig
	Location LocationConfig
	Store    StoreConfig
	HTTP     HTTPConfig
	User     UserConfig
	Log      LogConfig

	Deepgram DeepgramConfig
	Audio    AudioConfig
	Session  SessionConfig
}

type TriggerConfig struct {
	Words            []string
	VocabularyFile   string
	IterationLimit   int
	SilentMode       bool
	CountdownSeconds int
	HandoffDelay     time.Duration
	RestartDelay     time.Duration
	MaxRestarts      int
}

type AlertConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// LocationConfig enables a fixed position when HasStatic is set, then a GeoIP
// lookup when GeoIPDatabase is set.
type LocationConfig struct {
	HasStatic     bool
	Latitude      float64
	Longitude     float64
	Accuracy      float64
	GeoIPDatabase string
	LookupURL     string
	Timeout       time.Duration
}

type StoreConfig struct {
	Driver           string
	DSN              string
	ContactsCacheTTL time.Duration
	RetentionDays    int
	PruneSchedule    string
}

type HTTPConfig struct {
	Addr string
}

type UserConfig struct {
	ID          string
	Name        string
	Phone       string
	Email       string
	Nationality string
	DigitalID   string
}

// Empty reports whether no traveller details were configured.
func (u UserConfig) Empty() bool {
	return u == UserConfig{}
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type DeepgramConfig struct {
	APIKey       string
	APIBaseURL   string
	Model        string
	Language     string
	SmartFormat  bool
	KeywordBoost int
	Endpointing  time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type SessionConfig struct {
	ChunkSize int
}

// Load reads an optional .env file, then resolves configuration from
// environment variables and sensible defaults. Variables already set in the
// environment win over the file.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	vocabularyPath := strings.TrimSpace(os.Getenv("SENTINEL_VOCABULARY_FILE"))
	if vocabularyPath == "" {
		vocabularyPath = firstExisting(filepath.Join(home, ".config", "safetour", "vocabulary.txt"))
	}

	cfg := Config{
		TranscriptSource: strings.ToLower(envOrDefault("SENTINEL_TRANSCRIPT_SOURCE", SourcePush)),
		Trigger: TriggerConfig{
			Words:            envOrDefaultList("SENTINEL_TRIGGER_WORDS", DefaultTriggerWords),
			VocabularyFile:   vocabularyPath,
			IterationLimit:   envOrDefaultInt("SENTINEL_VOCABULARY_ITERATION_LIMIT", 30),
			SilentMode:       envOrDefaultBool("SENTINEL_SILENT_MODE", false),
			CountdownSeconds: envOrDefaultInt("SENTINEL_COUNTDOWN_SECONDS", 5),
			HandoffDelay:     envOrDefaultMillis("SENTINEL_HANDOFF_DELAY_MS", 500),
			RestartDelay:     envOrDefaultMillis("SENTINEL_RESTART_DELAY_MS", 1000),
			MaxRestarts:      envOrDefaultInt("SENTINEL_MAX_RESTARTS", 5),
		},
		Alert: AlertConfig{
			Endpoint: strings.TrimSpace(os.Getenv("SENTINEL_ALERT_ENDPOINT")),
			Token:    strings.TrimSpace(os.Getenv("SENTINEL_ALERT_TOKEN")),
			Timeout:  envOrDefaultMillis("SENTINEL_ALERT_TIMEOUT_MS", 10000),
		},
		Location: LocationConfig{
			Accuracy:      envOrDefaultFloat("SENTINEL_LOCATION_ACCURACY", 50),
			GeoIPDatabase: strings.TrimSpace(os.Getenv("SENTINEL_GEOIP_DB")),
			LookupURL:     envOrDefault("SENTINEL_LOCATION_IP_LOOKUP_URL", "https://api.ipify.org"),
			Timeout:       envOrDefaultMillis("SENTINEL_LOCATION_TIMEOUT_MS", 3000),
		},
		Store: StoreConfig{
			Driver:           strings.ToLower(envOrDefault("SENTINEL_DB_DRIVER", "sqlite")),
			DSN:              envOrDefault("SENTINEL_DSN", filepath.Join(home, ".local", "share", "safetour", "sentinel.db")),
			ContactsCacheTTL: envOrDefaultMillis("SENTINEL_CONTACTS_CACHE_TTL_MS", 30000),
			RetentionDays:    envOrDefaultInt("SENTINEL_HISTORY_RETENTION_DAYS", 90),
			PruneSchedule:    envOrDefault("SENTINEL_HISTORY_PRUNE_SCHEDULE", "@daily"),
		},
		HTTP: HTTPConfig{
			Addr: envOrDefault("SENTINEL_HTTP_ADDR", "127.0.0.1:8787"),
		},
		User: UserConfig{
			ID:          strings.TrimSpace(os.Getenv("SENTINEL_USER_ID")),
			Name:        strings.TrimSpace(os.Getenv("SENTINEL_USER_NAME")),
			Phone:       strings.TrimSpace(os.Getenv("SENTINEL_USER_PHONE")),
			Email:       strings.TrimSpace(os.Getenv("SENTINEL_USER_EMAIL")),
			Nationality: strings.TrimSpace(os.Getenv("SENTINEL_USER_NATIONALITY")),
			DigitalID:   strings.TrimSpace(os.Getenv("SENTINEL_USER_DIGITAL_ID")),
		},
		Log: LogConfig{
			Level:      envOrDefault("SENTINEL_LOG_LEVEL", "info"),
			Format:     envOrDefault("SENTINEL_LOG_FORMAT", "json"),
			File:       strings.TrimSpace(os.Getenv("SENTINEL_LOG_FILE")),
			MaxSizeMB:  envOrDefaultInt("SENTINEL_LOG_MAX_SIZE_MB", 20),
			MaxBackups: envOrDefaultInt("SENTINEL_LOG_MAX_BACKUPS", 5),
			MaxAgeDays: envOrDefaultInt("SENTINEL_LOG_MAX_AGE_DAYS", 30),
		},
		Deepgram: DeepgramConfig{
			APIKey:       strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:   envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:        envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:     strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat:  envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			KeywordBoost: envOrDefaultInt("DEEPGRAM_KEYWORD_BOOST", 2),
			Endpointing:  envOrDefaultMillis("DEEPGRAM_ENDPOINTING_MS", 300),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("SENTINEL_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("SENTINEL_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("SENTINEL_AUDIO_INPUT_DEVICE"),
				os.Getenv("DEEPGRAM_PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("SENTINEL_SAMPLE_RATE", 16000),
			Channels:   envOrDefaultInt("SENTINEL_CHANNELS", 1),
		},
		Session: SessionConfig{
			ChunkSize: envOrDefaultInt("SENTINEL_AUDIO_CHUNK_SIZE", 4096),
		},
	}

	lat := strings.TrimSpace(os.Getenv("SENTINEL_LOCATION_LAT"))
	lon := strings.TrimSpace(os.Getenv("SENTINEL_LOCATION_LON"))
	if lat != "" && lon != "" {
		latitude, latErr := cast.ToFloat64E(lat)
		longitude, lonErr := cast.ToFloat64E(lon)
		if latErr != nil || lonErr != nil {
			return Config{}, fmt.Errorf("invalid static location %q,%q", lat, lon)
		}
		cfg.Location.HasStatic = true
		cfg.Location.Latitude = latitude
		cfg.Location.Longitude = longitude
	}

	switch cfg.TranscriptSource {
	case SourcePush, SourceDeepgram:
	default:
		return Config{}, fmt.Errorf("unknown transcript source %q", cfg.TranscriptSource)
	}

	if cfg.Trigger.IterationLimit <= 0 {
		cfg.Trigger.IterationLimit = 30
	}
	if cfg.Trigger.CountdownSeconds < 0 {
		cfg.Trigger.CountdownSeconds = 5
	}
	if cfg.Trigger.MaxRestarts <= 0 {
		cfg.Trigger.MaxRestarts = 5
	}
	if cfg.Alert.Timeout <= 0 {
		cfg.Alert.Timeout = 10 * time.Second
	}
	if cfg.Location.Timeout <= 0 {
		cfg.Location.Timeout = 3 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}

	return cfg, nil
}

func loadDotEnv() error {
	path := envOrDefault("SENTINEL_ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToIntE(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToFloat64E(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	parsed, err := cast.ToBoolE(value)
	if value == "" || err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback int) time.Duration {
	ms := envOrDefaultInt(key, fallback)
	if ms < 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envOrDefaultList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
