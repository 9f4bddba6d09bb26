package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signup-gateway/internal/common/config"
	apperrors "signup-gateway/internal/common/errors"
	"signup-gateway/internal/common/logger"
	"signup-gateway/internal/festival"
	"signup-gateway/internal/provider"
	"signup-gateway/internal/wizard"
)

// ==========================
// Test Helpers
// ==========================

type fakeBackend struct {
	mu          sync.Mutex
	activities  []*festival.Activity
	tracks      []*festival.Track
	participant *festival.Participant

	subscribeCalls   int
	unsubscribeCalls int

	// When set, Subscribe blocks until released.
	hold    chan struct{}
	started chan struct{}
}

func (f *fakeBackend) AllActivities(ctx context.Context) ([]*festival.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activities, nil
}

func (f *fakeBackend) AllTracks(ctx context.Context) ([]*festival.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracks, nil
}

func (f *fakeBackend) Participant(ctx context.Context, username string) (*festival.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.participant != nil {
		return f.participant, nil
	}
	return &festival.Participant{Username: username}, nil
}

func (f *fakeBackend) Suggestions(ctx context.Context, username string) (*festival.SuggestionBundle, error) {
	return &festival.SuggestionBundle{}, nil
}

func (f *fakeBackend) Activity(ctx context.Context, id festival.ID) (*festival.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.activities {
		if a != nil && a.ID == id {
			return a, nil
		}
	}
	return nil, apperrors.NewNotFoundError(id.String())
}

func (f *fakeBackend) Subscribe(ctx context.Context, username string, id festival.ID) error {
	f.mu.Lock()
	f.subscribeCalls++
	hold, started := f.hold, f.started
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if hold != nil {
		<-hold
	}
	return nil
}

func (f *fakeBackend) Unsubscribe(ctx context.Context, username string, id festival.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribeCalls++
	return nil
}

func (f *fakeBackend) SubscribeTrack(ctx context.Context, username string, id festival.ID) error {
	return nil
}

func (f *fakeBackend) UnsubscribeTrack(ctx context.Context, username string) error {
	return nil
}

func (f *fakeBackend) AssignLabels(ctx context.Context, username string, labels []string) error {
	return nil
}

func (f *fakeBackend) ClearLabels(ctx context.Context, username string) error {
	return nil
}

func strPtr(s string) *string { return &s }

func newTestRouter(t *testing.T, backend *fakeBackend, username string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewTestLogger(t)
	prov := provider.New(backend, provider.NewMemoryStore(), time.Minute, provider.SystemClock(), log)
	if username != "" {
		prov.Login(context.Background(), username, &festival.WordPressUser{Login: username})
	}

	flow, err := wizard.DefaultFlow()
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Name = "signup-gateway-test"
	cfg.Server.AllowedOrigins = []string{"http://localhost"}
	cfg.Dev.Debug = true

	return NewRouter(RouterConfig{
		Logger:   log,
		Config:   cfg,
		Provider: prov,
		Mutator:  backend,
		Labels:   backend,
		Records:  backend,
		Flow:     flow,
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(rec, req)

	parsed := map[string]json.RawMessage{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &parsed)
	}
	return rec, parsed
}

// ==========================
// Activities Pipeline Tests
// ==========================

func TestActivitiesPipeline(t *testing.T) {
	// Raw backend feed: one valid activity, one nil entry, one without a
	// name, and a duplicate of the first title.
	backend := &fakeBackend{
		activities: []*festival.Activity{
			{ID: "1", Name: "A", Start: strPtr("2026-07-10T10:00:00Z"), End: strPtr("2026-07-10T11:00:00Z")},
			nil,
			{ID: "2", Name: "", Start: strPtr("2026-07-10T10:00:00Z"), End: strPtr("2026-07-10T11:00:00Z")},
			{ID: "3", Name: "A", Start: strPtr("2026-07-10T10:00:00Z"), End: strPtr("2026-07-10T11:00:00Z")},
		},
	}
	router := newTestRouter(t, backend, "")

	rec, body := doJSON(t, router, http.MethodGet, "/api/activities", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []struct {
		ID     festival.ID `json:"id"`
		Status string      `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body["activities"], &views))
	require.Len(t, views, 1, "only the first valid unique activity survives")
	assert.Equal(t, festival.ID("1"), views[0].ID)
	assert.Equal(t, "available", views[0].Status)
}

func TestActivitiesTitlesView(t *testing.T) {
	backend := &fakeBackend{
		activities: []*festival.Activity{
			{ID: "1", Name: "Yoga", Start: strPtr("2026-07-10T10:00:00Z"), End: strPtr("2026-07-10T11:00:00Z")},
			{ID: "2", Name: "Yoga", Start: strPtr("2026-07-11T10:00:00Z"), End: strPtr("2026-07-11T11:00:00Z")},
		},
	}
	router := newTestRouter(t, backend, "")

	_, body := doJSON(t, router, http.MethodGet, "/api/activities?view=titles", "")
	var titleViews []json.RawMessage
	require.NoError(t, json.Unmarshal(body["activities"], &titleViews))
	assert.Len(t, titleViews, 1, "titles view collapses recurring sessions")

	_, body = doJSON(t, router, http.MethodGet, "/api/activities", "")
	var calendarViews []json.RawMessage
	require.NoError(t, json.Unmarshal(body["activities"], &calendarViews))
	assert.Len(t, calendarViews, 2, "default view keeps each occurrence")
}

func TestActivitiesConflictAnnotation(t *testing.T) {
	backend := &fakeBackend{
		activities: []*festival.Activity{
			{ID: "1", Name: "Held", Start: strPtr("2026-07-10T10:00:00Z"), End: strPtr("2026-07-10T12:00:00Z")},
			{ID: "2", Name: "Clash", Start: strPtr("2026-07-10T11:00:00Z"), End: strPtr("2026-07-10T13:00:00Z")},
		},
		participant: &festival.Participant{Username: "maria", ActivityIDs: []festival.ID{"1"}},
	}
	router := newTestRouter(t, backend, "maria")

	_, body := doJSON(t, router, http.MethodGet, "/api/activities", "")
	var views []struct {
		ID        festival.ID   `json:"id"`
		Status    string        `json:"status"`
		Conflicts []festival.ID `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(body["activities"], &views))
	require.Len(t, views, 2)

	assert.Equal(t, "subscribed", views[0].Status)
	assert.Equal(t, "conflict", views[1].Status)
	assert.Equal(t, []festival.ID{"1"}, views[1].Conflicts)
}

func TestActivitiesCrossTrackConflict(t *testing.T) {
	// Held activity sits in track A; the overlapping candidate in track B.
	// Filtering to track B must not hide the held activity from conflict
	// evaluation.
	backend := &fakeBackend{
		activities: []*festival.Activity{
			{ID: "1", Name: "Held", Start: strPtr("2026-07-10T10:00:00Z"), End: strPtr("2026-07-10T12:00:00Z")},
			{ID: "2", Name: "Clash", Start: strPtr("2026-07-10T11:00:00Z"), End: strPtr("2026-07-10T13:00:00Z")},
		},
		tracks: []*festival.Track{
			{ID: "A", Name: "Track A", ActivityNumbers: []festival.ID{"1"}},
			{ID: "B", Name: "Track B", ActivityNumbers: []festival.ID{"2"}},
		},
		participant: &festival.Participant{Username: "maria", ActivityIDs: []festival.ID{"1"}},
	}
	router := newTestRouter(t, backend, "maria")

	_, body := doJSON(t, router, http.MethodGet, "/api/activities?track=B", "")
	var views []struct {
		ID     festival.ID `json:"id"`
		Status string      `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body["activities"], &views))
	require.Len(t, views, 1)
	assert.Equal(t, festival.ID("2"), views[0].ID)
	assert.Equal(t, "conflict", views[0].Status)

	_, body = doJSON(t, router, http.MethodGet, "/api/activities?track=B&eligible=true", "")
	var eligible []json.RawMessage
	require.NoError(t, json.Unmarshal(body["activities"], &eligible))
	assert.Empty(t, eligible, "a cross-track conflict is not an addition candidate")
}

func TestActivitiesTitlesViewKeepsConflictSources(t *testing.T) {
	// The held occurrence is the one the titles dedup collapses away; it
	// must still count as a conflict source for other rows.
	backend := &fakeBackend{
		activities: []*festival.Activity{
			{ID: "1", Name: "Yoga", Start: strPtr("2026-07-09T10:00:00Z"), End: strPtr("2026-07-09T11:00:00Z")},
			{ID: "2", Name: "Yoga", Start: strPtr("2026-07-10T11:00:00Z"), End: strPtr("2026-07-10T13:00:00Z")},
			{ID: "3", Name: "Pilates", Start: strPtr("2026-07-10T11:30:00Z"), End: strPtr("2026-07-10T12:30:00Z")},
		},
		participant: &festival.Participant{Username: "maria", ActivityIDs: []festival.ID{"2"}},
	}
	router := newTestRouter(t, backend, "maria")

	_, body := doJSON(t, router, http.MethodGet, "/api/activities?view=titles", "")
	var views []struct {
		ID        festival.ID   `json:"id"`
		Status    string        `json:"status"`
		Conflicts []festival.ID `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(body["activities"], &views))
	require.Len(t, views, 2, "titles view collapses the second Yoga run")

	byID := map[festival.ID]struct {
		Status    string
		Conflicts []festival.ID
	}{}
	for _, v := range views {
		byID[v.ID] = struct {
			Status    string
			Conflicts []festival.ID
		}{v.Status, v.Conflicts}
	}
	require.Contains(t, byID, festival.ID("3"))
	assert.Equal(t, "conflict", byID["3"].Status)
	assert.Equal(t, []festival.ID{"2"}, byID["3"].Conflicts)
}

// ==========================
// Mutation Tests
// ==========================

func TestSubscribeRequiresLogin(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "")
	rec, _ := doJSON(t, router, http.MethodPost, "/api/activities/1/subscribe", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubscribeDoubleClickGuard(t *testing.T) {
	backend := &fakeBackend{
		hold:    make(chan struct{}),
		started: make(chan struct{}),
	}
	router := newTestRouter(t, backend, "maria")

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/activities/42/subscribe", nil))
		firstDone <- rec
	}()
	<-backend.started

	// Second click while the first call is outstanding.
	rec, _ := doJSON(t, router, http.MethodPost, "/api/activities/42/subscribe", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(backend.hold)
	first := <-firstDone
	assert.Equal(t, http.StatusOK, first.Code)

	backend.mu.Lock()
	calls := backend.subscribeCalls
	backend.mu.Unlock()
	assert.Equal(t, 1, calls, "the guarded click must not reach the backend")
}

func TestUnsubscribeRefreshesProfile(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(t, backend, "maria")

	rec, body := doJSON(t, router, http.MethodPost, "/api/activities/42/unsubscribe", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body["profile"]), "maria")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 1, backend.unsubscribeCalls)
}

// ==========================
// Profile / Wizard Tests
// ==========================

func TestProfileAndLogout(t *testing.T) {
	backend := &fakeBackend{
		participant: &festival.Participant{Username: "maria", Labels: []string{"interest:music"}},
	}
	router := newTestRouter(t, backend, "maria")

	rec, body := doJSON(t, router, http.MethodGet, "/api/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", string(body["loggedIn"]))
	assert.Equal(t, "true", string(body["hasCompletedWizard"]))

	rec, _ = doJSON(t, router, http.MethodPost, "/api/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, body = doJSON(t, router, http.MethodGet, "/api/profile", "")
	assert.Equal(t, "false", string(body["loggedIn"]))
}

func TestWizardComplete(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(t, backend, "maria")

	answers := `{"interests":["food"],"group":"alone","intensity":"relaxed"}`
	rec, body := doJSON(t, router, http.MethodPost, "/api/wizard/complete", answers)
	require.Equal(t, http.StatusOK, rec.Code)

	var labels []string
	require.NoError(t, json.Unmarshal(body["labels"], &labels))
	assert.Equal(t, []string{"interest:food", "company:alone", "pace:relaxed"}, labels)
}

func TestWizardCompleteRejectsInvalid(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "maria")
	rec, _ := doJSON(t, router, http.MethodPost, "/api/wizard/complete", `{"interests":["skydiving"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealthcheck(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "")
	rec, body := doJSON(t, router, http.MethodGet, "/healthcheck", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"healthy"`, string(body["status"]))
}

func TestWizardReset(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "maria")
	rec, body := doJSON(t, router, http.MethodPost, "/api/wizard/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(body["labels"]))
}

// ==========================
// Admin Tests
// ==========================

func TestAdminActivityDetail(t *testing.T) {
	backend := &fakeBackend{
		activities: []*festival.Activity{
			{ID: "1", Name: "Yoga", Start: strPtr("2026-07-10T10:00:00Z"), End: strPtr("2026-07-10T11:00:00Z")},
		},
	}
	router := newTestRouter(t, backend, "")

	rec, body := doJSON(t, router, http.MethodGet, "/api/admin/activities/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body["activity"]), "Yoga")

	rec, _ = doJSON(t, router, http.MethodGet, "/api/admin/activities/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminStats(t *testing.T) {
	backend := &fakeBackend{
		activities: []*festival.Activity{
			{ID: "1", Name: "Yoga", Start: strPtr("2026-07-10T10:00:00Z"), End: strPtr("2026-07-10T11:00:00Z")},
			{ID: "2", Name: "Yoga", Start: strPtr("2026-07-11T10:00:00Z"), End: strPtr("2026-07-11T11:00:00Z")},
			nil,
		},
	}
	router := newTestRouter(t, backend, "")

	rec, body := doJSON(t, router, http.MethodGet, "/api/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", string(body["uniqueTitles"]))
	assert.Equal(t, "2", string(body["occurrences"]))

	var validation struct {
		Original      int `json:"original"`
		InvalidObject int `json:"invalid_object"`
	}
	require.NoError(t, json.Unmarshal(body["validation"], &validation))
	assert.Equal(t, 3, validation.Original)
	assert.Equal(t, 1, validation.InvalidObject)
}
