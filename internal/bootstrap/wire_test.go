package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"safetour/internal/config"
	"safetour/internal/domain"
	"safetour/internal/providers/deepgram"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		TranscriptSource: config.SourcePush,
		Trigger: config.TriggerConfig{
			Words:            []string{"help", "sos"},
			IterationLimit:   30,
			CountdownSeconds: 5,
			HandoffDelay:     time.Millisecond,
			RestartDelay:     10 * time.Millisecond,
			MaxRestarts:      2,
		},
		Alert:    config.AlertConfig{Timeout: time.Second},
		Location: config.LocationConfig{Timeout: 100 * time.Millisecond},
		Store:    config.StoreConfig{Driver: "sqlite", ContactsCacheTTL: time.Second, PruneSchedule: "@daily"},
		HTTP:     config.HTTPConfig{Addr: "127.0.0.1:0"},
	}
}

func TestBuildSuccess(t *testing.T) {
	services, err := BuildWith(testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if services.Controller == nil || services.Router == nil || services.Push == nil {
		t.Fatalf("expected controller, router and push source")
	}
	status := services.Controller.Status()
	if status.State != domain.SessionStateIdle || len(status.TriggerWords) != 2 {
		t.Fatalf("unexpected initial status: %+v", status)
	}

	rec := httptest.NewRecorder()
	services.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", rec.Code)
	}

	if server := services.HTTPServer(); server.Addr != "127.0.0.1:0" || server.Handler == nil {
		t.Fatalf("unexpected http server: %+v", server)
	}
}

func TestBuildUsesVocabularyWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.txt")
	if err := os.WriteFile(path, []byte("hilfe\ns o s => sos\nsos\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg := testConfig(t)
	cfg.Trigger.VocabularyFile = path

	services, err := BuildWith(cfg, nil, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	words := services.Controller.Status().TriggerWords
	if len(words) != 2 || words[0] != "hilfe" || words[1] != "sos" {
		t.Fatalf("vocabulary words should replace defaults, got %v", words)
	}
}

func TestBuildFailsOnInvalidVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	if err := os.WriteFile(path, []byte("s/(unclosed/x/\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg := testConfig(t)
	cfg.Trigger.VocabularyFile = path

	if _, err := BuildWith(cfg, nil, nil); err == nil {
		t.Fatalf("expected build error due to invalid vocabulary")
	}
}

func TestBuildRequiresDeepgramKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.TranscriptSource = config.SourceDeepgram

	_, err := BuildWith(cfg, nil, nil)
	if !errors.Is(err, deepgram.ErrMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestBuildCreatesSQLiteDirectory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.DSN = filepath.Join(t.TempDir(), "nested", "sentinel.db")

	services, err := BuildWith(cfg, nil, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if _, err := os.Stat(filepath.Dir(cfg.Store.DSN)); err != nil {
		t.Fatalf("expected database directory: %v", err)
	}
}

func TestPushedTriggerSendsSilentAlert(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []domain.EmergencyAlertPayload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload domain.EmergencyAlertPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		payloads = append(payloads, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Alert.Endpoint = server.URL
	cfg.Trigger.SilentMode = true
	cfg.Location.HasStatic = true
	cfg.Location.Latitude = 48.85
	cfg.Location.Longitude = 2.35
	cfg.User = config.UserConfig{Name: "Ada"}

	sink := &recordingSink{}
	services, err := BuildWith(cfg, sink, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	ctx := context.Background()
	if _, err := services.Contacts.Create(ctx, domain.Contact{Name: "Grace", Phone: "+331234", Primary: true}); err != nil {
		t.Fatalf("create contact failed: %v", err)
	}
	if err := services.Controller.Arm(ctx); err != nil {
		t.Fatalf("arm failed: %v", err)
	}
	waitFor(t, func() bool { return services.Push.Listening() })
	if err := services.Push.Push("please help me", false); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	waitFor(t, func() bool {
		records, err := services.History.Recent(ctx, 10)
		return err == nil && len(records) == 1
	})
	waitFor(t, func() bool { return sink.alerts() == 1 })

	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(payloads))
	}
	got := payloads[0]
	if got.TriggerWord != "help" || !got.SilentMode || got.Location == nil || len(got.Contacts) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.UserDetails == nil || got.UserDetails.Name != "Ada" {
		t.Fatalf("expected user details, got %+v", got.UserDetails)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type recordingSink struct {
	mu         sync.Mutex
	dispatched int
}

func (*recordingSink) SessionStateChanged(domain.SessionState, domain.SessionStateReason) {}
func (*recordingSink) PartialTranscript(string)                                           {}
func (*recordingSink) CountdownChanged(domain.CountdownState)                             {}
func (*recordingSink) SessionError(domain.ErrorCode, string)                              {}

func (s *recordingSink) AlertDispatched(domain.TriggerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched++
}

func (s *recordingSink) alerts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatched
}
