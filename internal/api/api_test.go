package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetour/internal/domain"
	"safetour/internal/listening"
	"safetour/internal/notify"
	"safetour/internal/store"
	"safetour/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSessionErrorsMapToStatusCodes(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"reset required":  {usecase.ErrResetRequired, http.StatusConflict},
		"armed":           {usecase.ErrSessionArmed, http.StatusConflict},
		"not cancellable": {usecase.ErrNotCancellable, http.StatusConflict},
		"no words":        {usecase.ErrNoTriggerWords, http.StatusBadRequest},
		"closed":          {usecase.ErrControllerClosed, http.StatusServiceUnavailable},
		"other":           {errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			session := &fakeSession{err: tc.err}
			router := NewRouter(Dependencies{Session: session})

			rec := doJSON(t, router, http.MethodPost, "/api/session/arm", "")
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusInternalServerError {
				assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), tc.err.Error())
			}
		})
	}
}

func TestSessionRoutesCallController(t *testing.T) {
	session := &fakeSession{}
	router := NewRouter(Dependencies{Session: session})

	for _, path := range []string{"arm", "disarm", "reset", "cancel", "send-now"} {
		rec := doJSON(t, router, http.MethodPost, "/api/session/"+path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
	assert.Equal(t, []string{"arm", "disarm", "reset", "cancel", "send-now"}, session.snapshot())

	rec := doJSON(t, router, http.MethodPut, "/api/session/silent-mode", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, session.silent)

	rec = doJSON(t, router, http.MethodPut, "/api/session/silent-mode", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/session/trigger-words", `{"words":["Mayday","help"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"words":["Mayday","help"]}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/contacts", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "contacts routes are omitted without a store")
}

func TestContactsCRUD(t *testing.T) {
	db, err := store.Open("sqlite", "")
	require.NoError(t, err)
	defer store.Close(db)

	contacts := store.NewCachedContacts(store.NewContactStore(db), time.Minute)
	router := NewRouter(Dependencies{Session: &fakeSession{}, Contacts: contacts})

	rec := doJSON(t, router, http.MethodPost, "/api/contacts", `{"name":"Ana","phone":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/contacts", `{"name":"Ana","phone":"+1 555","relationship":"sister","primary":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.True(t, created.Primary)

	rec = doJSON(t, router, http.MethodPut, "/api/contacts/"+itoa(created.ID), `{"name":"Ana B","phone":"+1 556"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/contacts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Contacts []domain.Contact `json:"contacts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Contacts, 1)
	assert.Equal(t, "Ana B", list.Contacts[0].Name)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/contacts/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/contacts/999", "").Code)
	assert.Equal(t, http.StatusNoContent, doJSON(t, router, http.MethodDelete, "/api/contacts/"+itoa(created.ID), "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodDelete, "/api/contacts/"+itoa(created.ID), "").Code)
}

func TestPushedTranscriptTriggersSilentAlert(t *testing.T) {
	db, err := store.Open("sqlite", "")
	require.NoError(t, err)
	defer store.Close(db)

	contactStore := store.NewContactStore(db)
	_, err = contactStore.Create(context.Background(), domain.Contact{Name: "Ana", Phone: "1"})
	require.NoError(t, err)
	historyStore := store.NewHistoryStore(db)
	push := listening.NewPushSource(8)
	submitter := &fakeSubmitter{}

	controller := usecase.NewEmergencyController(usecase.Dependencies{
		Source:    push,
		Contacts:  contactStore,
		Submitter: submitter,
		History:   historyStore,
		Events:    notify.NewFanout(),
	}, usecase.Config{
		TriggerWords: []string{"help", "sos"},
		SilentMode:   true,
		HandoffDelay: time.Millisecond,
	})
	defer controller.Close()

	router := NewRouter(Dependencies{Session: controller, History: historyStore, Transcripts: push})

	rec := doJSON(t, router, http.MethodPost, "/api/transcripts", `{"text":"help"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "pushing before arming is rejected")

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/api/session/arm", "").Code)
	rec = doJSON(t, router, http.MethodPost, "/api/transcripts", `{"text":"please send SOS now","final":false}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var status domain.Status
	require.Eventually(t, func() bool {
		rec := doJSON(t, router, http.MethodGet, "/api/status", "")
		if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &status) != nil {
			return false
		}
		return status.LastOutcome != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.SessionStateIdle, status.State)
	assert.False(t, status.Armed)
	assert.Equal(t, domain.AlertOutcomeSent, status.LastOutcome.Outcome)

	payloads := submitter.snapshot()
	require.Len(t, payloads, 1)
	assert.Equal(t, "sos", payloads[0].TriggerWord)
	assert.True(t, payloads[0].SilentMode)
	assert.Len(t, payloads[0].Contacts, 1)
	assert.Nil(t, payloads[0].Location)

	rec = doJSON(t, router, http.MethodGet, "/api/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Records []domain.TriggerRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Records, 1)
	assert.Equal(t, payloads[0].AlertID, history.Records[0].AlertID)
	assert.Equal(t, 1, history.Records[0].ContactsCount)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/history?limit=x", "").Code)
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

type fakeSession struct {
	mu     sync.Mutex
	err    error
	calls  []string
	words  []string
	silent bool
}

func (f *fakeSession) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeSession) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) Arm(context.Context) error     { return f.record("arm") }
func (f *fakeSession) Disarm(context.Context) error  { return f.record("disarm") }
func (f *fakeSession) Reset(context.Context) error   { return f.record("reset") }
func (f *fakeSession) Cancel(context.Context) error  { return f.record("cancel") }
func (f *fakeSession) SendNow(context.Context) error { return f.record("send-now") }

func (f *fakeSession) SetTriggerWords(_ context.Context, words []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.words = words
	return f.err
}

func (f *fakeSession) SetSilentMode(_ context.Context, silent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent = silent
	return f.err
}

func (f *fakeSession) Status() domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.Status{State: domain.SessionStateIdle, SilentMode: f.silent, TriggerWords: f.words}
}

type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []domain.EmergencyAlertPayload
}

func (f *fakeSubmitter) Submit(_ context.Context, payload domain.EmergencyAlertPayload) (domain.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return domain.SubmitResult{AlertID: payload.AlertID}, nil
}

func (f *fakeSubmitter) snapshot() []domain.EmergencyAlertPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.EmergencyAlertPayload(nil), f.payloads...)
}
