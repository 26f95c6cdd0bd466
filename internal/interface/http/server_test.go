package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduaid/eduaid-hub/internal/application/command"
	"github.com/eduaid/eduaid-hub/internal/application/query"
	"github.com/eduaid/eduaid-hub/internal/application/session"
	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/auth"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/persistence/memory"
	"github.com/eduaid/eduaid-hub/internal/interface/http/handlers"
	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

const testUsers = `
users:
  - id: learner-1
    email: alex@example.com
    name: Alex
    password: open-sesame
`

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

type testServer struct {
	server  *Server
	manager *session.Manager
	health  *handlers.CompositeHealthChecker
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	related := catalog.LessonID(1)
	cat := catalog.MustNew(
		[]catalog.Lesson{{ID: 1, Title: "Counting to Ten"}, {ID: 2, Title: "Shapes"}},
		[]catalog.Activity{{ID: 10, Title: "Number Match", RelatedLessonID: &related, TotalQuestions: 5}},
	)
	tr, err := progress.NewTracker(cat, progress.DefaultPolicy())
	require.NoError(t, err)

	clock := timeutil.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	manager, err := session.NewManager(session.Options{
		Tracker: tr,
		Store:   memory.NewStore(),
		Clock:   clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.CloseAll() })

	dir, err := auth.ParseUsers([]byte(testUsers))
	require.NoError(t, err)
	authn, err := auth.NewLocal(dir, auth.Config{
		Secret:   "http-test-secret-http-test-secret",
		TokenTTL: time.Hour,
		Clock:    clock,
	})
	require.NoError(t, err)

	health := handlers.NewCompositeHealthChecker("test")
	srv, err := NewServer(DefaultConfig(), Dependencies{
		StartLesson:           command.NewStartLessonHandler(manager),
		UpdateLessonProgress:  command.NewUpdateLessonProgressHandler(manager),
		CompleteLesson:        command.NewCompleteLessonHandler(manager),
		CompleteActivity:      command.NewCompleteActivityHandler(manager),
		MarkNotificationsRead: command.NewMarkNotificationsReadHandler(manager),
		GetDashboard:          query.NewGetDashboardHandler(manager),
		GetCalendar:           query.NewGetCalendarHandler(manager),
		GetProgress:           query.NewGetProgressHandler(manager),
		GetNotifications:      query.NewGetNotificationsHandler(manager),
		Catalog:               cat,
		Auth:                  authn,
		Sessions:              manager,
		HealthChecker:         health,
	})
	require.NoError(t, err)

	ts := &testServer{server: srv, manager: manager, health: health}
	res := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alex@example.com", "password": "open-sesame",
	})
	require.Equal(t, http.StatusOK, res.Code)
	var login auth.LoginResult
	decodeData(t, res, &login)
	require.NotEmpty(t, login.Token)
	ts.token = login.Token
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) learner(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, method, path, ts.token, body)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	env := decode(t, rec)
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode(t, rec)
	require.False(t, env.Success)
	require.NotNil(t, env.Error, rec.Body.String())
	return env.Error.Code
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(DefaultConfig(), Dependencies{})
	assert.Error(t, err)
}

func TestLearnerRoutes_RequireToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCodeOf(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/v1/dashboard", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", errorCodeOf(t, rec))
}

func TestLogin_BadCredentials(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alex@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", errorCodeOf(t, rec))

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alex@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout_RevokesToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.learner(t, http.MethodPost, "/api/v1/lessons/1/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.learner(t, http.MethodPost, "/api/v1/lessons/1/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	s, ok := ts.manager.Get("learner-1")
	require.True(t, ok)
	require.Positive(t, s.PendingNotices())

	rec = ts.learner(t, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, ok = ts.manager.Get("learner-1")
	assert.False(t, ok)
	assert.Zero(t, s.PendingNotices())

	rec = ts.learner(t, http.MethodGet, "/api/v1/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLessonFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.learner(t, http.MethodPost, "/api/v1/lessons/1/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var started command.LessonResult
	decodeData(t, rec, &started)
	assert.Equal(t, catalog.LessonID(1), started.Lesson.LessonID)
	assert.Zero(t, started.Lesson.ProgressPercent)

	rec = ts.learner(t, http.MethodPost, "/api/v1/lessons/1/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "lesson_already_started", errorCodeOf(t, rec))

	rec = ts.learner(t, http.MethodPut, "/api/v1/lessons/1/progress", map[string]int{"percent": 150})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated command.LessonResult
	decodeData(t, rec, &updated)
	assert.Equal(t, 100, updated.Lesson.ProgressPercent)

	rec = ts.learner(t, http.MethodPut, "/api/v1/lessons/1/progress", map[string]int{"percent": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_progress", errorCodeOf(t, rec))

	rec = ts.learner(t, http.MethodPut, "/api/v1/lessons/1/progress", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.learner(t, http.MethodPost, "/api/v1/lessons/1/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var completed command.LessonResult
	decodeData(t, rec, &completed)
	assert.True(t, completed.Lesson.Completed)

	rec = ts.learner(t, http.MethodPost, "/api/v1/lessons/1/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "lesson_already_completed", errorCodeOf(t, rec))
}

func TestLessonErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.learner(t, http.MethodPost, "/api/v1/lessons/2/complete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "lesson_not_started", errorCodeOf(t, rec))

	rec = ts.learner(t, http.MethodPost, "/api/v1/lessons/99/start", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_lesson", errorCodeOf(t, rec))

	rec = ts.learner(t, http.MethodPost, "/api/v1/lessons/abc/start", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", errorCodeOf(t, rec))
}

func TestCompleteActivity(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.learner(t, http.MethodPost, "/api/v1/activities/10/complete", map[string]int{"score": 6, "maxScore": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_score", errorCodeOf(t, rec))

	rec = ts.learner(t, http.MethodPost, "/api/v1/activities/10/complete", map[string]int{"score": 4, "maxScore": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res command.CompleteActivityResult
	decodeData(t, rec, &res)
	assert.Equal(t, 80, res.Percent)
	assert.True(t, res.Activity.Completed)

	rec = ts.learner(t, http.MethodPost, "/api/v1/activities/10/complete", map[string]int{"score": 5, "maxScore": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "activity_already_completed", errorCodeOf(t, rec))
}

func TestNotifications(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.learner(t, http.MethodPost, "/api/v1/lessons/1/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.learner(t, http.MethodGet, "/api/v1/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page query.NotificationsDTO
	decodeData(t, rec, &page)
	require.NotEmpty(t, page.Items)
	assert.Equal(t, len(page.Items), page.Unread)

	rec = ts.learner(t, http.MethodPost, "/api/v1/notifications/999/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "notification_not_found", errorCodeOf(t, rec))

	rec = ts.learner(t, http.MethodPost, "/api/v1/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var marked command.MarkNotificationsReadResult
	decodeData(t, rec, &marked)
	assert.Equal(t, page.Unread, marked.Marked)

	rec = ts.learner(t, http.MethodGet, "/api/v1/notifications?unread=true", nil)
	decodeData(t, rec, &page)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Unread)
}

func TestReadModels(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.learner(t, http.MethodPost, "/api/v1/lessons/1/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{"/api/v1/dashboard", "/api/v1/calendar", "/api/v1/calendar?upcoming=true&limit=1", "/api/v1/progress"} {
		rec = ts.learner(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec = ts.learner(t, http.MethodGet, "/api/v1/calendar", nil)
	var cal query.CalendarDTO
	decodeData(t, rec, &cal)
	require.Len(t, cal.Events, 1)
}

func TestCatalogIsPublic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Lessons    []catalog.Lesson   `json:"lessons"`
		Activities []catalog.Activity `json:"activities"`
	}
	decodeData(t, rec, &body)
	assert.Len(t, body.Lessons, 2)
	assert.Len(t, body.Activities, 1)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.health.AddCheck("database", func(context.Context) error { return errors.New("connection refused") })
	rec = ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &status))
	assert.False(t, status.Healthy)
	assert.Equal(t, "connection refused", status.Checks["database"].Message)
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
	assert.Equal(t, "req-42", decode(t, rec).RequestID)

	rec = ts.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}
